package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wandertrip/booking-backend/internal/models"
)

// BookingDetailRepository handles the per-type detail tables. Tour and
// activity bookings have exactly one detail row; flight bookings have one row
// per leg.
type BookingDetailRepository struct {
	db DB
}

// NewBookingDetailRepository creates a new BookingDetailRepository
func NewBookingDetailRepository(db DB) *BookingDetailRepository {
	return &BookingDetailRepository{db: db}
}

// CreateTour inserts a tour detail row
func (r *BookingDetailRepository) CreateTour(detail *models.BookingTour) error {
	query := `
		INSERT INTO booking_tours (
			id, booking_id, tour_id, num_adults, num_children, num_infants,
			price_by_age, subtotal, passengers, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		detail.ID, detail.BookingID, detail.TourID,
		detail.NumAdults, detail.NumChildren, detail.NumInfants,
		detail.PriceByAge, detail.Subtotal, detail.Passengers, detail.Status,
	).Scan(&detail.CreatedAt, &detail.UpdatedAt)
}

// CreateFlight inserts one flight leg row
func (r *BookingDetailRepository) CreateFlight(detail *models.BookingFlight) error {
	query := `
		INSERT INTO booking_flights (
			id, booking_id, flight_id, num_adults, num_children, num_infants,
			price_by_class, class_type, subtotal, passengers, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at
	`

	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		detail.ID, detail.BookingID, detail.FlightID,
		detail.NumAdults, detail.NumChildren, detail.NumInfants,
		detail.PriceByClass, detail.ClassType, detail.Subtotal,
		detail.Passengers, detail.Status,
	).Scan(&detail.CreatedAt, &detail.UpdatedAt)
}

// CreateActivity inserts an activity detail row
func (r *BookingDetailRepository) CreateActivity(detail *models.BookingActivity) error {
	query := `
		INSERT INTO booking_activities (
			id, booking_id, activity_id, num_adults, num_children,
			num_babies, num_seniors, retail_price, scheduled_date,
			subtotal, qr_code_url, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at, updated_at
	`

	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		detail.ID, detail.BookingID, detail.ActivityID,
		detail.NumAdults, detail.NumChildren, detail.NumBabies, detail.NumSeniors,
		detail.RetailPrice, detail.ScheduledDate, detail.Subtotal,
		detail.QRCodeURL, detail.Status,
	).Scan(&detail.CreatedAt, &detail.UpdatedAt)
}

// GetTourByBookingID retrieves the tour detail for a booking
func (r *BookingDetailRepository) GetTourByBookingID(bookingID string) (*models.BookingTour, error) {
	query := `
		SELECT id, booking_id, tour_id, num_adults, num_children, num_infants,
			   price_by_age, subtotal, passengers, status, created_at, updated_at
		FROM booking_tours
		WHERE booking_id = $1
	`

	detail := &models.BookingTour{}
	err := r.db.QueryRow(query, bookingID).Scan(
		&detail.ID, &detail.BookingID, &detail.TourID,
		&detail.NumAdults, &detail.NumChildren, &detail.NumInfants,
		&detail.PriceByAge, &detail.Subtotal, &detail.Passengers,
		&detail.Status, &detail.CreatedAt, &detail.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetFlightsByBookingID retrieves all flight legs for a booking in creation
// order, so the outbound leg comes first
func (r *BookingDetailRepository) GetFlightsByBookingID(bookingID string) ([]models.BookingFlight, error) {
	query := `
		SELECT id, booking_id, flight_id, num_adults, num_children, num_infants,
			   price_by_class, class_type, subtotal, passengers, status,
			   created_at, updated_at
		FROM booking_flights
		WHERE booking_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	legs := []models.BookingFlight{}
	for rows.Next() {
		var leg models.BookingFlight
		err := rows.Scan(
			&leg.ID, &leg.BookingID, &leg.FlightID,
			&leg.NumAdults, &leg.NumChildren, &leg.NumInfants,
			&leg.PriceByClass, &leg.ClassType, &leg.Subtotal,
			&leg.Passengers, &leg.Status, &leg.CreatedAt, &leg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	return legs, rows.Err()
}

// GetActivityByBookingID retrieves the activity detail for a booking
func (r *BookingDetailRepository) GetActivityByBookingID(bookingID string) (*models.BookingActivity, error) {
	query := `
		SELECT id, booking_id, activity_id, num_adults, num_children,
			   num_babies, num_seniors, retail_price, scheduled_date,
			   subtotal, qr_code_url, status, created_at, updated_at
		FROM booking_activities
		WHERE booking_id = $1
	`

	detail := &models.BookingActivity{}
	var qrCodeURL sql.NullString
	err := r.db.QueryRow(query, bookingID).Scan(
		&detail.ID, &detail.BookingID, &detail.ActivityID,
		&detail.NumAdults, &detail.NumChildren, &detail.NumBabies, &detail.NumSeniors,
		&detail.RetailPrice, &detail.ScheduledDate, &detail.Subtotal,
		&qrCodeURL, &detail.Status, &detail.CreatedAt, &detail.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if qrCodeURL.Valid {
		detail.QRCodeURL = &qrCodeURL.String
	}
	return detail, nil
}

// UpdateTourCounts rewrites participant counts and the recomputed subtotal.
// The price snapshot is never touched.
func (r *BookingDetailRepository) UpdateTourCounts(bookingID string, adults, children, infants int, subtotal float64) error {
	query := `
		UPDATE booking_tours
		SET num_adults = $2, num_children = $3, num_infants = $4,
			subtotal = $5, updated_at = NOW()
		WHERE booking_id = $1
	`
	return r.execOne(query, bookingID, adults, children, infants, subtotal)
}

// UpdateFlightCounts rewrites one leg's passenger counts and subtotal
func (r *BookingDetailRepository) UpdateFlightCounts(legID string, adults, children, infants int, subtotal float64) error {
	query := `
		UPDATE booking_flights
		SET num_adults = $2, num_children = $3, num_infants = $4,
			subtotal = $5, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(query, legID, adults, children, infants, subtotal)
}

// UpdateActivityCounts rewrites participant counts and the recomputed subtotal
func (r *BookingDetailRepository) UpdateActivityCounts(bookingID string, adults, children, babies, seniors int, subtotal float64) error {
	query := `
		UPDATE booking_activities
		SET num_adults = $2, num_children = $3, num_babies = $4,
			num_seniors = $5, subtotal = $6, updated_at = NOW()
		WHERE booking_id = $1
	`
	return r.execOne(query, bookingID, adults, children, babies, seniors, subtotal)
}

// SyncStatus mirrors the parent booking status into the detail rows so each
// table stays queryable on its own
func (r *BookingDetailRepository) SyncStatus(bookingID string, bookingType models.BookingType, status models.BookingStatus) error {
	var table string
	switch bookingType {
	case models.BookingTypeTour:
		table = "booking_tours"
	case models.BookingTypeFlight:
		table = "booking_flights"
	case models.BookingTypeActivity:
		table = "booking_activities"
	default:
		return fmt.Errorf("unknown booking type %q", bookingType)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, updated_at = NOW()
		WHERE booking_id = $1
	`, table)

	_, err := r.db.Exec(query, bookingID, status)
	return err
}

func (r *BookingDetailRepository) execOne(query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
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
