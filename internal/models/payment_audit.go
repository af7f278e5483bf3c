package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// JSONB is a generic JSONB column backed by a map
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) { return jsonbValue(j) }
func (j *JSONB) Scan(src interface{}) error  { return jsonbScan(src, j) }

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated           PaymentEventType = "payment_initiated"
	PaymentEventResponse            PaymentEventType = "payment_response"
	PaymentEventCallbackReceived    PaymentEventType = "callback_received"
	PaymentEventStatusCheckRequest  PaymentEventType = "status_check_request"
	PaymentEventStatusCheckResponse PaymentEventType = "status_check_response"
	PaymentEventSuccess             PaymentEventType = "payment_success"
	PaymentEventFailed              PaymentEventType = "payment_failed"
	PaymentEventBookingConfirmed    PaymentEventType = "booking_confirmed"
	PaymentEventError               PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourceZaloPayCallback PaymentEventSource = "zalopay_callback"
	PaymentSourceZaloPayAPI      PaymentEventSource = "zalopay_api"
	PaymentSourceUser            PaymentEventSource = "user"
	PaymentSourceSystem          PaymentEventSource = "system"
)

// PaymentAudit is an immutable audit log entry for payment events
type PaymentAudit struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  *string   `json:"booking_id,omitempty" db:"booking_id"`
	AppTransID *string   `json:"app_trans_id,omitempty" db:"app_trans_id"`
	ZPTransID  *string   `json:"zp_trans_id,omitempty" db:"zp_trans_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking for reconciliation
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`

	// Raw payloads kept for debugging disputes
	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates an audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking links the audit entry to a booking
func (pa *PaymentAudit) SetBooking(bookingID string) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetAppTransID sets the gateway order reference
func (pa *PaymentAudit) SetAppTransID(id string) *PaymentAudit {
	pa.AppTransID = &id
	return pa
}

// SetZPTransID sets the gateway-side transaction id
func (pa *PaymentAudit) SetZPTransID(id string) *PaymentAudit {
	pa.ZPTransID = &id
	return pa
}

// SetAmounts records and compares expected vs received amounts,
// returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received

	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus records the gateway-reported status
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError records error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw payload before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetRequestPayload stores the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload stores the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata records caller metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}
