package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// PriceByAge is the tour price snapshot, frozen at booking time
type PriceByAge struct {
	Adult  float64 `json:"adult"`
	Child  float64 `json:"child"`
	Infant float64 `json:"infant"`
}

func (p PriceByAge) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *PriceByAge) Scan(src interface{}) error  { return jsonbScan(src, p) }

// PriceByClass is the flight price snapshot, frozen at booking time
type PriceByClass struct {
	Economy  float64 `json:"economy"`
	Business float64 `json:"business"`
}

func (p PriceByClass) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *PriceByClass) Scan(src interface{}) error  { return jsonbScan(src, p) }

// RetailPrice is the activity price snapshot, frozen at booking time
type RetailPrice struct {
	Adult  float64 `json:"adult"`
	Child  float64 `json:"child"`
	Baby   float64 `json:"baby"`
	Senior float64 `json:"senior"`
}

func (p RetailPrice) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *RetailPrice) Scan(src interface{}) error  { return jsonbScan(src, p) }

// FlightClass is the seating class chosen for a flight booking
type FlightClass string

const (
	FlightClassEconomy  FlightClass = "economy"
	FlightClassBusiness FlightClass = "business"
)

// IsValid reports whether the class is supported
func (c FlightClass) IsValid() bool {
	return c == FlightClassEconomy || c == FlightClassBusiness
}

// PassengerType categorizes a passenger for pricing
type PassengerType string

const (
	PassengerTypeAdult  PassengerType = "adult"
	PassengerTypeChild  PassengerType = "child"
	PassengerTypeInfant PassengerType = "infant"
)

// nationalIDPattern matches the two legal national-ID lengths
var nationalIDPattern = regexp.MustCompile(`^(\d{9}|\d{12})$`)

// Passenger holds per-person data on a booking detail
type Passenger struct {
	FullName    string        `json:"full_name"`
	DateOfBirth string        `json:"date_of_birth,omitempty"`
	Gender      string        `json:"gender,omitempty"`
	NationalID  *string       `json:"national_id,omitempty"`
	Type        PassengerType `json:"type,omitempty"`
}

// Validate checks required passenger fields; national id, when present,
// must be 9 or 12 digits
func (p *Passenger) Validate() error {
	if p.FullName == "" {
		return errors.New("passenger full_name is required")
	}
	if p.NationalID != nil && *p.NationalID != "" && !nationalIDPattern.MatchString(*p.NationalID) {
		return fmt.Errorf("passenger %s: national_id must be 9 or 12 digits", p.FullName)
	}
	return nil
}

// PassengerList is stored as a JSONB column on the detail record
type PassengerList []Passenger

func (l PassengerList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *PassengerList) Scan(src interface{}) error  { return jsonbScan(src, l) }

// BookingTour is the tour detail record, 1:1 with its parent Booking
type BookingTour struct {
	ID          string        `json:"id" db:"id"`
	BookingID   string        `json:"booking_id" db:"booking_id"`
	TourID      string        `json:"tour_id" db:"tour_id"`
	NumAdults   int           `json:"num_adults" db:"num_adults"`
	NumChildren int           `json:"num_children" db:"num_children"`
	NumInfants  int           `json:"num_infants" db:"num_infants"`
	PriceByAge  PriceByAge    `json:"price_by_age" db:"price_by_age"`
	Subtotal    float64       `json:"subtotal" db:"subtotal"`
	Passengers  PassengerList `json:"passengers,omitempty" db:"passengers"`
	Status      BookingStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingFlight is one flight leg of a booking. Round trips attach two rows
// to the same parent; completion is driven by the latest arrival among them.
type BookingFlight struct {
	ID           string        `json:"id" db:"id"`
	BookingID    string        `json:"booking_id" db:"booking_id"`
	FlightID     string        `json:"flight_id" db:"flight_id"`
	NumAdults    int           `json:"num_adults" db:"num_adults"`
	NumChildren  int           `json:"num_children" db:"num_children"`
	NumInfants   int           `json:"num_infants" db:"num_infants"`
	PriceByClass PriceByClass  `json:"price_by_class" db:"price_by_class"`
	ClassType    FlightClass   `json:"class_type" db:"class_type"`
	Subtotal     float64       `json:"subtotal" db:"subtotal"`
	Passengers   PassengerList `json:"passengers,omitempty" db:"passengers"`
	Status       BookingStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingActivity is the activity detail record, 1:1 with its parent Booking
type BookingActivity struct {
	ID            string        `json:"id" db:"id"`
	BookingID     string        `json:"booking_id" db:"booking_id"`
	ActivityID    string        `json:"activity_id" db:"activity_id"`
	NumAdults     int           `json:"num_adults" db:"num_adults"`
	NumChildren   int           `json:"num_children" db:"num_children"`
	NumBabies     int           `json:"num_babies" db:"num_babies"`
	NumSeniors    int           `json:"num_seniors" db:"num_seniors"`
	RetailPrice   RetailPrice   `json:"retail_price" db:"retail_price"`
	ScheduledDate time.Time     `json:"scheduled_date" db:"scheduled_date"`
	Subtotal      float64       `json:"subtotal" db:"subtotal"`
	QRCodeURL     *string       `json:"qr_code_url,omitempty" db:"qr_code_url"`
	Status        BookingStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingDetail bundles whichever detail shape belongs to a booking for
// API responses
type BookingDetail struct {
	Tour     *BookingTour     `json:"tour,omitempty"`
	Flights  []BookingFlight  `json:"flights,omitempty"`
	Activity *BookingActivity `json:"activity,omitempty"`
}

// BookingWithDetail is the populated aggregate returned to clients
type BookingWithDetail struct {
	Booking
	Detail BookingDetail `json:"detail"`
}

// BookingTourRequest is the tour detail payload on booking creation
type BookingTourRequest struct {
	TourID      string        `json:"tour_id"`
	NumAdults   int           `json:"num_adults"`
	NumChildren int           `json:"num_children"`
	NumInfants  int           `json:"num_infants"`
	Passengers  PassengerList `json:"passengers,omitempty"`
}

// Validate checks the tour payload shape
func (r *BookingTourRequest) Validate() error {
	if r.TourID == "" {
		return errors.New("tour_id is required")
	}
	if r.NumAdults < 0 || r.NumChildren < 0 || r.NumInfants < 0 {
		return errors.New("participant counts must not be negative")
	}
	for i := range r.Passengers {
		if err := r.Passengers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BookingFlightRequest is one flight leg payload on booking creation
type BookingFlightRequest struct {
	FlightID    string        `json:"flight_id"`
	ClassType   FlightClass   `json:"class_type"`
	NumAdults   int           `json:"num_adults"`
	NumChildren int           `json:"num_children"`
	NumInfants  int           `json:"num_infants"`
	Passengers  PassengerList `json:"passengers,omitempty"`
}

// Validate checks the flight payload shape
func (r *BookingFlightRequest) Validate() error {
	if r.FlightID == "" {
		return errors.New("flight_id is required")
	}
	if !r.ClassType.IsValid() {
		return errors.New("class_type must be economy or business")
	}
	if r.NumAdults < 0 || r.NumChildren < 0 || r.NumInfants < 0 {
		return errors.New("passenger counts must not be negative")
	}
	for i := range r.Passengers {
		if err := r.Passengers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BookingActivityRequest is the activity detail payload on booking creation
type BookingActivityRequest struct {
	ActivityID    string     `json:"activity_id"`
	NumAdults     int        `json:"num_adults"`
	NumChildren   int        `json:"num_children"`
	NumBabies     int        `json:"num_babies"`
	NumSeniors    int        `json:"num_seniors"`
	ScheduledDate *time.Time `json:"scheduled_date"`
}

// Validate checks the activity payload shape; scheduled_date is the
// participation date and is mandatory
func (r *BookingActivityRequest) Validate() error {
	if r.ActivityID == "" {
		return errors.New("activity_id is required")
	}
	if r.ScheduledDate == nil {
		return errors.New("scheduled_date is required")
	}
	if r.NumAdults < 0 || r.NumChildren < 0 || r.NumBabies < 0 || r.NumSeniors < 0 {
		return errors.New("participant counts must not be negative")
	}
	return nil
}

// UpdateDetailRequest carries participant-count edits for PUT /bookings/:id.
// Only counts may change; the price snapshot is immutable and the subtotal is
// recomputed from it.
type UpdateDetailRequest struct {
	NumAdults   *int `json:"num_adults,omitempty"`
	NumChildren *int `json:"num_children,omitempty"`
	NumInfants  *int `json:"num_infants,omitempty"`
	NumBabies   *int `json:"num_babies,omitempty"`
	NumSeniors  *int `json:"num_seniors,omitempty"`
}
