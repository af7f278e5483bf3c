package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wandertrip/booking-backend/internal/models"
)

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	b.id, b.user_id, b.booking_type, b.total_price, b.status,
	b.payment_status, b.payment_method, b.app_trans_id, b.zp_trans_id,
	b.order_url, b.paid_at, b.discount_code, b.created_at, b.updated_at,
	u.full_name, u.email, u.phone
`

// Create inserts a new booking
func (r *BookingRepository) Create(booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, user_id, booking_type, total_price, status,
			payment_status, payment_method, discount_code
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at, updated_at
	`

	// Generate ID if not provided
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		booking.ID, booking.UserID, booking.BookingType, booking.TotalPrice,
		booking.Status, booking.PaymentStatus, booking.PaymentMethod,
		booking.DiscountCode,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	return err
}

// GetByID retrieves a booking by ID with owner contact details
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.id = $1
	`

	booking, err := r.scanBooking(r.db.QueryRow(query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return booking, err
}

// GetByAppTransID retrieves a booking by its gateway order reference
func (r *BookingRepository) GetByAppTransID(appTransID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.app_trans_id = $1
	`

	booking, err := r.scanBooking(r.db.QueryRow(query, appTransID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return booking, err
}

// GetByUserID retrieves all bookings for a user, newest first
func (r *BookingRepository) GetByUserID(userID string) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// List retrieves all bookings for admin views, optionally filtered by status
func (r *BookingRepository) List(status models.BookingStatus) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE ($1 = '' OR b.status = $1)
		ORDER BY b.created_at DESC
	`

	rows, err := r.db.Query(query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// UpdateStatus moves a booking from one status to another. The WHERE clause
// guards against concurrent transitions: if the row is gone or no longer in
// the expected status, no row matches and ErrStaleStatus is returned.
func (r *BookingRepository) UpdateStatus(bookingID string, from, to models.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(query, bookingID, from, to)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleStatus
	}
	return nil
}

// SetPaymentOrder stores the gateway order reference and payment URL created
// for a zalopay booking
func (r *BookingRepository) SetPaymentOrder(bookingID, appTransID, orderURL string) error {
	query := `
		UPDATE bookings
		SET app_trans_id = $2, order_url = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, bookingID, appTransID, orderURL)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid records a successful payment and confirms the booking in one
// statement. The payment_status guard makes replayed gateway callbacks
// no-ops: a second call matches zero rows and returns ErrStaleStatus.
func (r *BookingRepository) MarkPaid(bookingID, zpTransID string, paidAt time.Time) error {
	query := `
		UPDATE bookings
		SET payment_status = 'paid', status = 'confirmed',
			zp_trans_id = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending' AND status = 'pending'
	`

	result, err := r.db.Exec(query, bookingID, zpTransID, paidAt)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleStatus
	}
	return nil
}

// UpdateTotalPrice rewrites the parent total after a detail edit
func (r *BookingRepository) UpdateTotalPrice(bookingID string, total float64) error {
	query := `
		UPDATE bookings
		SET total_price = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, bookingID, total)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking. Detail rows go with it via ON DELETE CASCADE.
func (r *BookingRepository) Delete(bookingID string) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// scanBooking scans a single booking with owner contact
func (r *BookingRepository) scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var appTransID sql.NullString
	var zpTransID sql.NullString
	var orderURL sql.NullString
	var paidAt sql.NullTime
	var discountCode sql.NullString
	var ownerPhone sql.NullString

	err := row.Scan(
		&booking.ID, &booking.UserID, &booking.BookingType, &booking.TotalPrice,
		&booking.Status, &booking.PaymentStatus, &booking.PaymentMethod,
		&appTransID, &zpTransID, &orderURL, &paidAt, &discountCode,
		&booking.CreatedAt, &booking.UpdatedAt,
		&booking.OwnerName, &booking.OwnerEmail, &ownerPhone,
	)
	if err != nil {
		return nil, err
	}

	// Convert sql.Null* types
	if appTransID.Valid {
		booking.AppTransID = &appTransID.String
	}
	if zpTransID.Valid {
		booking.ZPTransID = &zpTransID.String
	}
	if orderURL.Valid {
		booking.OrderURL = &orderURL.String
	}
	if paidAt.Valid {
		booking.PaidAt = &paidAt.Time
	}
	if discountCode.Valid {
		booking.DiscountCode = &discountCode.String
	}
	if ownerPhone.Valid {
		booking.OwnerPhone = ownerPhone.String
	}

	return booking, nil
}

// scanBookings scans multiple bookings from rows
func (r *BookingRepository) scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	bookings := []models.Booking{}

	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}
