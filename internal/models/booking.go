package models

import (
	"errors"
	"time"
)

// BookingType identifies which product a booking purchases
type BookingType string

const (
	BookingTypeTour     BookingType = "tour"
	BookingTypeFlight   BookingType = "flight"
	BookingTypeActivity BookingType = "activity"
)

// IsValid reports whether the booking type is one of the known product types
func (t BookingType) IsValid() bool {
	switch t {
	case BookingTypeTour, BookingTypeFlight, BookingTypeActivity:
		return true
	default:
		return false
	}
}

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// bookingTransitions is the single source of truth for legal status moves.
// Terminal states have no outgoing edges.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// IsValid reports whether the status is a known lifecycle state
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether moving from s to next is a legal transition
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentMethod represents how the customer pays
type PaymentMethod string

const (
	PaymentMethodMomo         PaymentMethod = "momo"
	PaymentMethodZaloPay      PaymentMethod = "zalopay"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// IsValid reports whether the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMomo, PaymentMethodZaloPay, PaymentMethodBankTransfer, PaymentMethodCash:
		return true
	default:
		return false
	}
}

// Booking is the parent aggregate for one purchase of a single product type.
// TotalPrice mirrors the detail record's subtotal at creation time; the
// detail is the source of truth and the parent is never recomputed on its own.
type Booking struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"user_id" db:"user_id"`
	BookingType   BookingType   `json:"booking_type" db:"booking_type"`
	TotalPrice    float64       `json:"total_price" db:"total_price"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`

	// ZaloPay correlation fields, populated only for zalopay payments
	AppTransID *string    `json:"app_trans_id,omitempty" db:"app_trans_id"`
	ZPTransID  *string    `json:"zp_trans_id,omitempty" db:"zp_trans_id"`
	OrderURL   *string    `json:"order_url,omitempty" db:"order_url"`
	PaidAt     *time.Time `json:"paid_at,omitempty" db:"paid_at"`

	DiscountCode *string   `json:"discount_code,omitempty" db:"discount_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Owner contact, denormalized for admin display. Populated on reads that
	// join users; never written back.
	OwnerName  string `json:"owner_name,omitempty" db:"owner_name"`
	OwnerEmail string `json:"owner_email,omitempty" db:"owner_email"`
	OwnerPhone string `json:"owner_phone,omitempty" db:"owner_phone"`
}

// CreateBookingRequest is the payload for POST /bookings. Exactly one detail
// payload must be set and must match BookingType.
type CreateBookingRequest struct {
	BookingType   BookingType   `json:"booking_type" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	DiscountCode  *string       `json:"discount_code,omitempty"`

	Tour *BookingTourRequest `json:"tour,omitempty"`
	// Flights carries one entry per leg; a round trip sends two
	Flights  []BookingFlightRequest  `json:"flights,omitempty"`
	Activity *BookingActivityRequest `json:"activity,omitempty"`
}

// Validate checks the request shape before any database work
func (r *CreateBookingRequest) Validate() error {
	if !r.BookingType.IsValid() {
		return errors.New("booking_type must be one of: tour, flight, activity")
	}
	if !r.PaymentMethod.IsValid() {
		return errors.New("payment_method must be one of: momo, zalopay, bank_transfer, cash")
	}
	switch r.BookingType {
	case BookingTypeTour:
		if r.Tour == nil {
			return errors.New("tour details are required for a tour booking")
		}
		return r.Tour.Validate()
	case BookingTypeFlight:
		if len(r.Flights) == 0 {
			return errors.New("at least one flight leg is required for a flight booking")
		}
		for i := range r.Flights {
			if err := r.Flights[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case BookingTypeActivity:
		if r.Activity == nil {
			return errors.New("activity details are required for an activity booking")
		}
		return r.Activity.Validate()
	}
	return nil
}
