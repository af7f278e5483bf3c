package database

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/wandertrip/booking-backend/internal/models"
)

// CancellationRepository handles database operations for cancellation_requests
type CancellationRepository struct {
	db DB
}

// NewCancellationRepository creates a new CancellationRepository
func NewCancellationRepository(db DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

const cancellationColumns = `
	cr.id, cr.booking_id, cr.user_id, cr.booking_type, cr.reason, cr.status,
	cr.admin_note, cr.processed_by, cr.processed_at, cr.created_at, cr.updated_at,
	u.full_name, u.email
`

// Create inserts a new cancellation request
func (r *CancellationRepository) Create(req *models.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (
			id, booking_id, user_id, booking_type, reason, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at, updated_at
	`

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		req.ID, req.BookingID, req.UserID, req.BookingType, req.Reason, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

// GetByID retrieves a cancellation request with requester contact
func (r *CancellationRepository) GetByID(id string) (*models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests cr
		JOIN users u ON u.id = cr.user_id
		WHERE cr.id = $1
	`

	req, err := r.scanRequest(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

// GetPendingByBookingID retrieves the open request for a booking, if any.
// At most one pending request per booking exists.
func (r *CancellationRepository) GetPendingByBookingID(bookingID string) (*models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests cr
		JOIN users u ON u.id = cr.user_id
		WHERE cr.booking_id = $1 AND cr.status = 'pending'
	`

	req, err := r.scanRequest(r.db.QueryRow(query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

// GetByUserID retrieves all requests submitted by a user, newest first
func (r *CancellationRepository) GetByUserID(userID string) ([]models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests cr
		JOIN users u ON u.id = cr.user_id
		WHERE cr.user_id = $1
		ORDER BY cr.created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

// List retrieves requests for admin review, optionally filtered by status
// and booking type
func (r *CancellationRepository) List(filter models.CancellationListFilter) ([]models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests cr
		JOIN users u ON u.id = cr.user_id
		WHERE ($1 = '' OR cr.status = $1)
		  AND ($2 = '' OR cr.booking_type = $2)
		ORDER BY cr.created_at DESC
	`

	rows, err := r.db.Query(query, string(filter.Status), string(filter.BookingType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

// CountPending returns the number of requests awaiting review
func (r *CancellationRepository) CountPending() (int, error) {
	query := `
		SELECT COUNT(*)
		FROM cancellation_requests
		WHERE status = 'pending'
	`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	return count, err
}

// Process records an admin decision. The status guard makes a second decision
// on the same request match zero rows and return ErrStaleStatus.
func (r *CancellationRepository) Process(id string, status models.CancellationStatus, adminNote *string, processedBy string) error {
	query := `
		UPDATE cancellation_requests
		SET status = $2, admin_note = $3, processed_by = $4,
			processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(query, id, status, adminNote, processedBy)
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

// scanRequest scans a single cancellation request
func (r *CancellationRepository) scanRequest(row scanner) (*models.CancellationRequest, error) {
	req := &models.CancellationRequest{}
	var adminNote sql.NullString
	var processedBy sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.BookingID, &req.UserID, &req.BookingType, &req.Reason,
		&req.Status, &adminNote, &processedBy, &processedAt,
		&req.CreatedAt, &req.UpdatedAt,
		&req.UserName, &req.UserEmail,
	)
	if err != nil {
		return nil, err
	}

	// Convert sql.Null* types
	if adminNote.Valid {
		req.AdminNote = &adminNote.String
	}
	if processedBy.Valid {
		req.ProcessedBy = &processedBy.String
	}
	if processedAt.Valid {
		req.ProcessedAt = &processedAt.Time
	}

	return req, nil
}

// scanRequests scans multiple cancellation requests from rows
func (r *CancellationRepository) scanRequests(rows *sql.Rows) ([]models.CancellationRequest, error) {
	requests := []models.CancellationRequest{}

	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}

	return requests, rows.Err()
}
