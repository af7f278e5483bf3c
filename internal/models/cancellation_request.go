package models

import (
	"errors"
	"time"
)

// CancellationStatus is the review state of a cancellation request
type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "pending"
	CancellationStatusApproved CancellationStatus = "approved"
	CancellationStatusRejected CancellationStatus = "rejected"
)

// IsValid reports whether the status is a known review state
func (s CancellationStatus) IsValid() bool {
	switch s {
	case CancellationStatusPending, CancellationStatusApproved, CancellationStatusRejected:
		return true
	default:
		return false
	}
}

// IsProcessed reports whether an admin has already decided the request.
// Processed requests are immutable.
func (s CancellationStatus) IsProcessed() bool {
	return s == CancellationStatusApproved || s == CancellationStatusRejected
}

// CancellationRequest is a customer's ask to cancel a booking, reviewed by an
// admin. BookingType is denormalized from the booking so admin lists can
// filter without a join.
type CancellationRequest struct {
	ID          string             `json:"id" db:"id"`
	BookingID   string             `json:"booking_id" db:"booking_id"`
	UserID      string             `json:"user_id" db:"user_id"`
	BookingType BookingType        `json:"booking_type" db:"booking_type"`
	Reason      string             `json:"reason" db:"reason"`
	Status      CancellationStatus `json:"status" db:"status"`
	AdminNote   *string            `json:"admin_note,omitempty" db:"admin_note"`
	ProcessedBy *string            `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`

	// Requester contact, denormalized for admin display on reads that join users
	UserName  string `json:"user_name,omitempty" db:"user_name"`
	UserEmail string `json:"user_email,omitempty" db:"user_email"`
}

// CreateCancellationRequest is the payload for POST /cancellationrequests
type CreateCancellationRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

// Validate checks the request shape
func (r *CreateCancellationRequest) Validate() error {
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

// ProcessCancellationRequest is the admin decision payload. AdminNote is
// mandatory on rejection so the customer always sees why.
type ProcessCancellationRequest struct {
	AdminNote string `json:"admin_note,omitempty"`
}

// CancellationListFilter narrows the admin list endpoint
type CancellationListFilter struct {
	Status      CancellationStatus
	BookingType BookingType
}
