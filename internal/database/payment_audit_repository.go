package database

import (
	"github.com/wandertrip/booking-backend/internal/models"
)

// PaymentAuditRepository appends to the immutable payment_audit table
type PaymentAuditRepository struct {
	db DB
}

// NewPaymentAuditRepository creates a new PaymentAuditRepository
func NewPaymentAuditRepository(db DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

// Create inserts an audit entry. Audit rows are never updated or deleted.
func (r *PaymentAuditRepository) Create(audit *models.PaymentAudit) error {
	query := `
		INSERT INTO payment_audit (
			id, booking_id, app_trans_id, zp_trans_id, event_type, event_source,
			expected_amount, received_amount, amounts_match, payment_status,
			request_payload, response_payload, raw_body, error_message,
			ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := r.db.Exec(
		query,
		audit.ID, audit.BookingID, audit.AppTransID, audit.ZPTransID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.PaymentStatus, audit.RequestPayload, audit.ResponsePayload,
		audit.RawBody, audit.ErrorMessage,
		audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	return err
}

// GetByBookingID retrieves the audit trail for one booking, oldest first
func (r *PaymentAuditRepository) GetByBookingID(bookingID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, app_trans_id, zp_trans_id, event_type, event_source,
			   expected_amount, received_amount, amounts_match, payment_status,
			   request_payload, response_payload, raw_body, error_message,
			   ip_address, user_agent, created_at
		FROM payment_audit
		WHERE booking_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.PaymentAudit{}
	for rows.Next() {
		var a models.PaymentAudit
		err := rows.Scan(
			&a.ID, &a.BookingID, &a.AppTransID, &a.ZPTransID,
			&a.EventType, &a.EventSource,
			&a.ExpectedAmount, &a.ReceivedAmount, &a.AmountsMatch,
			&a.PaymentStatus, &a.RequestPayload, &a.ResponsePayload,
			&a.RawBody, &a.ErrorMessage,
			&a.IPAddress, &a.UserAgent, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}

	return entries, rows.Err()
}
