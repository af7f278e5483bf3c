package database

import (
	"database/sql"
	"errors"

	"github.com/wandertrip/booking-backend/internal/models"
)

// ProductRepository reads the tour, flight and activity catalogs. The catalog
// is managed by a separate admin service; this module only needs lookups for
// validation and price snapshotting.
type ProductRepository struct {
	db DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetTourByID retrieves a tour
func (r *ProductRepository) GetTourByID(id string) (*models.Tour, error) {
	query := `
		SELECT id, name, location, start_date, end_date, price_by_age,
			   capacity, created_at, updated_at
		FROM tours
		WHERE id = $1
	`

	tour := &models.Tour{}
	err := r.db.QueryRow(query, id).Scan(
		&tour.ID, &tour.Name, &tour.Location, &tour.StartDate, &tour.EndDate,
		&tour.PriceByAge, &tour.Capacity, &tour.CreatedAt, &tour.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tour, nil
}

// GetFlightByID retrieves a flight template
func (r *ProductRepository) GetFlightByID(id string) (*models.Flight, error) {
	query := `
		SELECT id, flight_number, airline, departure_airport, arrival_airport,
			   departure_time, arrival_time, price_by_class, created_at, updated_at
		FROM flights
		WHERE id = $1
	`

	flight := &models.Flight{}
	err := r.db.QueryRow(query, id).Scan(
		&flight.ID, &flight.FlightNumber, &flight.Airline,
		&flight.DepartureAirport, &flight.ArrivalAirport,
		&flight.DepartureTime, &flight.ArrivalTime, &flight.PriceByClass,
		&flight.CreatedAt, &flight.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return flight, nil
}

// GetActivityByID retrieves an activity
func (r *ProductRepository) GetActivityByID(id string) (*models.Activity, error) {
	query := `
		SELECT id, name, location, retail_price, created_at, updated_at
		FROM activities
		WHERE id = $1
	`

	activity := &models.Activity{}
	err := r.db.QueryRow(query, id).Scan(
		&activity.ID, &activity.Name, &activity.Location,
		&activity.RetailPrice, &activity.CreatedAt, &activity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}
