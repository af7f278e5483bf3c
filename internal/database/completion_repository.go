package database

import (
	"database/sql"
	"time"

	"github.com/wandertrip/booking-backend/internal/models"
)

// CompletionRepository feeds the auto-completion scheduler with confirmed
// bookings and the catalog data needed to compute each one's service end
// moment
type CompletionRepository struct {
	db DB
}

// NewCompletionRepository creates a new CompletionRepository
func NewCompletionRepository(db DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// TourCandidate is a confirmed tour booking with its tour end date
type TourCandidate struct {
	BookingID string
	UserID    string
	EndDate   time.Time
}

// FlightLegCandidate is one leg of a confirmed flight booking. ScheduleArrival
// is the arrival of the flight_schedules row whose date matches the template's
// departure day, when such a row exists.
type FlightLegCandidate struct {
	BookingID       string
	UserID          string
	TemplateArrival time.Time
	ScheduleArrival *time.Time
}

// ActivityCandidate is a confirmed activity booking with its participation date
type ActivityCandidate struct {
	BookingID     string
	UserID        string
	ScheduledDate time.Time
}

// ListConfirmedTours returns confirmed tour bookings with their end dates
func (r *CompletionRepository) ListConfirmedTours() ([]TourCandidate, error) {
	query := `
		SELECT b.id, b.user_id, t.end_date
		FROM bookings b
		JOIN booking_tours bt ON bt.booking_id = b.id
		JOIN tours t ON t.id = bt.tour_id
		WHERE b.status = 'confirmed' AND b.booking_type = 'tour'
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []TourCandidate{}
	for rows.Next() {
		var c TourCandidate
		if err := rows.Scan(&c.BookingID, &c.UserID, &c.EndDate); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// ListConfirmedFlightLegs returns every leg of every confirmed flight booking.
// The left join picks up the schedule instance flying the same calendar day as
// the template; its arrival overrides the template's when present.
func (r *CompletionRepository) ListConfirmedFlightLegs() ([]FlightLegCandidate, error) {
	query := `
		SELECT b.id, b.user_id, f.arrival_time, fs.arrival_time
		FROM bookings b
		JOIN booking_flights bf ON bf.booking_id = b.id
		JOIN flights f ON f.id = bf.flight_id
		LEFT JOIN flight_schedules fs
		  ON fs.flight_id = f.id
		 AND fs.flight_date::date = f.departure_time::date
		WHERE b.status = 'confirmed' AND b.booking_type = 'flight'
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	legs := []FlightLegCandidate{}
	for rows.Next() {
		var leg FlightLegCandidate
		var scheduleArrival sql.NullTime
		if err := rows.Scan(&leg.BookingID, &leg.UserID, &leg.TemplateArrival, &scheduleArrival); err != nil {
			return nil, err
		}
		if scheduleArrival.Valid {
			leg.ScheduleArrival = &scheduleArrival.Time
		}
		legs = append(legs, leg)
	}

	return legs, rows.Err()
}

// ListConfirmedActivities returns confirmed activity bookings with their
// scheduled dates
func (r *CompletionRepository) ListConfirmedActivities() ([]ActivityCandidate, error) {
	query := `
		SELECT b.id, b.user_id, ba.scheduled_date
		FROM bookings b
		JOIN booking_activities ba ON ba.booking_id = b.id
		WHERE b.status = 'confirmed' AND b.booking_type = 'activity'
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []ActivityCandidate{}
	for rows.Next() {
		var c ActivityCandidate
		if err := rows.Scan(&c.BookingID, &c.UserID, &c.ScheduledDate); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// Complete moves a confirmed booking to completed. The status guard makes the
// operation idempotent across overlapping scheduler runs.
func (r *CompletionRepository) Complete(bookingID string) error {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`

	result, err := r.db.Exec(query, bookingID)
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

// group helpers used by the scheduler

// GroupFlightLegs folds per-leg rows into one completion projection per booking
func GroupFlightLegs(legs []FlightLegCandidate) map[string]models.FlightCompletion {
	grouped := make(map[string]models.FlightCompletion)
	for _, leg := range legs {
		c := grouped[leg.BookingID]
		c.Legs = append(c.Legs, models.FlightLegArrival{
			TemplateArrival: leg.TemplateArrival,
			ScheduleArrival: leg.ScheduleArrival,
		})
		grouped[leg.BookingID] = c
	}
	return grouped
}
