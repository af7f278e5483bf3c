package models

import "time"

// Tour is the tour catalog record
type Tour struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Location   string     `json:"location" db:"location"`
	StartDate  time.Time  `json:"start_date" db:"start_date"`
	EndDate    time.Time  `json:"end_date" db:"end_date"`
	PriceByAge PriceByAge `json:"price_by_age" db:"price_by_age"`
	Capacity   int        `json:"capacity" db:"capacity"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Flight is the flight template record. DepartureTime and ArrivalTime are the
// template timetable; a FlightSchedule row for a concrete date overrides them.
type Flight struct {
	ID               string       `json:"id" db:"id"`
	FlightNumber     string       `json:"flight_number" db:"flight_number"`
	Airline          string       `json:"airline" db:"airline"`
	DepartureAirport string       `json:"departure_airport" db:"departure_airport"`
	ArrivalAirport   string       `json:"arrival_airport" db:"arrival_airport"`
	DepartureTime    time.Time    `json:"departure_time" db:"departure_time"`
	ArrivalTime      time.Time    `json:"arrival_time" db:"arrival_time"`
	PriceByClass     PriceByClass `json:"price_by_class" db:"price_by_class"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// FlightSchedule is a per-date instance of a flight template with its actual
// departure and arrival moments
type FlightSchedule struct {
	ID            string    `json:"id" db:"id"`
	FlightID      string    `json:"flight_id" db:"flight_id"`
	FlightDate    time.Time `json:"flight_date" db:"flight_date"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time" db:"arrival_time"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Activity is the activity catalog record
type Activity struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Location    string      `json:"location" db:"location"`
	RetailPrice RetailPrice `json:"retail_price" db:"retail_price"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
