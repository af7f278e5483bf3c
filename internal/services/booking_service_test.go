package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wandertrip/booking-backend/internal/apperr"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/notify"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newBookingService(db database.DB, bus notify.Bus) *BookingService {
	return NewBookingService(
		database.NewBookingRepository(db),
		database.NewBookingDetailRepository(db),
		database.NewProductRepository(db),
		bus,
		testLogger(),
	)
}

func bookingSelectRows(id, userID, bookingType, status, paymentStatus string, total float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "booking_type", "total_price", "status",
		"payment_status", "payment_method", "app_trans_id", "zp_trans_id",
		"order_url", "paid_at", "discount_code", "created_at", "updated_at",
		"full_name", "email", "phone",
	}).AddRow(
		id, userID, bookingType, total, status,
		paymentStatus, "zalopay", nil, nil,
		nil, nil, nil, now, now,
		"Nguyen Van A", "a@example.com", nil,
	)
}

func TestCreateBooking_Tour(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	svc := newBookingService(&mockDatabase{db: db}, bus)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs("tour-1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "location", "start_date", "end_date",
				"price_by_age", "capacity", "created_at", "updated_at",
			}).AddRow(
				"tour-1", "Ha Long Bay 3N2D", "Quang Ninh", now, now.Add(72*time.Hour),
				[]byte(`{"adult":1000000,"child":500000,"infant":0}`), 30, now, now,
			))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`INSERT INTO booking_tours`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`SELECT (.+) FROM booking_tours`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_id", "tour_id", "num_adults", "num_children", "num_infants",
				"price_by_age", "subtotal", "passengers", "status", "created_at", "updated_at",
			}).AddRow(
				"detail-1", "booking-1", "tour-1", 2, 1, 0,
				[]byte(`{"adult":1000000,"child":500000,"infant":0}`), 2500000.0, nil, "pending", now, now,
			))

		result, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeTour,
			PaymentMethod: models.PaymentMethodZaloPay,
			Tour: &models.BookingTourRequest{
				TourID:      "tour-1",
				NumAdults:   2,
				NumChildren: 1,
			},
		})
		require.NoError(t, err)
		// 2 adults x 1,000,000 + 1 child x 500,000
		assert.Equal(t, 2500000.0, result.TotalPrice)
		assert.Equal(t, models.BookingStatusPending, result.Status)
		assert.Equal(t, models.PaymentStatusPending, result.PaymentStatus)
		require.NotNil(t, result.Detail.Tour)
		assert.Equal(t, 2500000.0, result.Detail.Tour.Subtotal)

		// the admin dashboard learns about every new booking
		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventBookingCreated, bus.AdminEvents[0].Type)
		assert.Equal(t, result.ID, bus.AdminEvents[0].BookingID)
		assert.Equal(t, "user-1", bus.AdminEvents[0].UserID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Tour", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeTour,
			PaymentMethod: models.PaymentMethodCash,
			Tour:          &models.BookingTourRequest{TourID: "missing", NumAdults: 1},
		})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Zero Participants", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs("tour-1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "location", "start_date", "end_date",
				"price_by_age", "capacity", "created_at", "updated_at",
			}).AddRow(
				"tour-1", "Ha Long Bay 3N2D", "Quang Ninh", now, now.Add(72*time.Hour),
				[]byte(`{"adult":1000000,"child":500000,"infant":0}`), 30, now, now,
			))

		_, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeTour,
			PaymentMethod: models.PaymentMethodCash,
			Tour:          &models.BookingTourRequest{TourID: "tour-1"},
		})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Detail Payload Missing", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeTour,
			PaymentMethod: models.PaymentMethodCash,
		})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func flightProductRows(id, number string, priceByClass string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "flight_number", "airline", "departure_airport", "arrival_airport",
		"departure_time", "arrival_time", "price_by_class", "created_at", "updated_at",
	}).AddRow(
		id, number, "Vietnam Airlines", "HAN", "SGN",
		now, now.Add(2*time.Hour), []byte(priceByClass), now, now,
	)
}

func TestCreateBooking_FlightRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	svc := newBookingService(&mockDatabase{db: db}, bus)
	now := time.Now()

	t.Run("Two Legs Priced And Stored", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM flights`).
			WithArgs("flight-out").
			WillReturnRows(flightProductRows("flight-out", "VN123",
				`{"economy":1500000,"business":3200000}`, now))
		mock.ExpectQuery(`SELECT (.+) FROM flights`).
			WithArgs("flight-back").
			WillReturnRows(flightProductRows("flight-back", "VN124",
				`{"economy":1500000,"business":3200000}`, now))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`INSERT INTO booking_flights`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`INSERT INTO booking_flights`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`SELECT (.+) FROM booking_flights`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_id", "flight_id", "num_adults", "num_children", "num_infants",
				"price_by_class", "class_type", "subtotal", "passengers", "status",
				"created_at", "updated_at",
			}).AddRow(
				"leg-1", "booking-1", "flight-out", 2, 0, 0,
				[]byte(`{"economy":1500000,"business":3200000}`), "economy", 3000000.0, nil, "pending", now, now,
			).AddRow(
				"leg-2", "booking-1", "flight-back", 2, 0, 0,
				[]byte(`{"economy":1500000,"business":3200000}`), "economy", 3000000.0, nil, "pending", now, now,
			))

		result, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeFlight,
			PaymentMethod: models.PaymentMethodZaloPay,
			Flights: []models.BookingFlightRequest{
				{FlightID: "flight-out", ClassType: models.FlightClassEconomy, NumAdults: 2},
				{FlightID: "flight-back", ClassType: models.FlightClassEconomy, NumAdults: 2},
			},
		})
		require.NoError(t, err)
		// 2 seats x 1,500,000 per leg, two legs
		assert.Equal(t, 6000000.0, result.TotalPrice)
		require.Len(t, result.Detail.Flights, 2)

		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventBookingCreated, bus.AdminEvents[0].Type)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Leg Fails The Whole Itinerary", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM flights`).
			WithArgs("flight-out").
			WillReturnRows(flightProductRows("flight-out", "VN123",
				`{"economy":1500000,"business":3200000}`, now))
		mock.ExpectQuery(`SELECT (.+) FROM flights`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeFlight,
			PaymentMethod: models.PaymentMethodZaloPay,
			Flights: []models.BookingFlightRequest{
				{FlightID: "flight-out", ClassType: models.FlightClassEconomy, NumAdults: 1},
				{FlightID: "missing", ClassType: models.FlightClassEconomy, NumAdults: 1},
			},
		})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Legs Rejected", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "user-1", &models.CreateBookingRequest{
			BookingType:   models.BookingTypeFlight,
			PaymentMethod: models.PaymentMethodZaloPay,
		})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestGetBooking_OwnerScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := newBookingService(&mockDatabase{db: db}, notify.NewRecorderBus())
	now := time.Now()

	t.Run("Someone Else's Booking Looks Missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "owner-user", "tour", "confirmed", "paid", 2500000))

		_, err := svc.GetByID("other-user", false, "booking-1")
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Admin Sees Any Booking", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "owner-user", "tour", "confirmed", "paid", 2500000))
		mock.ExpectQuery(`SELECT (.+) FROM booking_tours`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_id", "tour_id", "num_adults", "num_children", "num_infants",
				"price_by_age", "subtotal", "passengers", "status", "created_at", "updated_at",
			}).AddRow(
				"detail-1", "booking-1", "tour-1", 2, 1, 0,
				[]byte(`{"adult":1000000,"child":500000,"infant":0}`), 2500000.0, nil, "confirmed", now, now,
			))

		result, err := svc.GetByID("admin-user", true, "booking-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-user", result.UserID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransitionBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	svc := newBookingService(&mockDatabase{db: db}, bus)

	t.Run("Pending To Confirmed", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "pending", "pending", 2500000))
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs("booking-1", models.BookingStatusPending, models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE booking_tours`).
			WithArgs("booking-1", models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		booking, err := svc.Transition(context.Background(), "booking-1", models.BookingStatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
		require.Len(t, bus.UserEvents["user-1"], 1)
		assert.Equal(t, notify.EventBookingStatusChanged, bus.UserEvents["user-1"][0].Type)
		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventBookingStatusChanged, bus.AdminEvents[0].Type)
		assert.Equal(t, "user-1", bus.AdminEvents[0].UserID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Completed Is Terminal", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "completed", "paid", 2500000))

		_, err := svc.Transition(context.Background(), "booking-1", models.BookingStatusCancelled)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Pending Cannot Complete Directly", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "pending", "pending", 2500000))

		_, err := svc.Transition(context.Background(), "booking-1", models.BookingStatusCompleted)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent Transition Conflicts", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "pending", "pending", 2500000))
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs("booking-1", models.BookingStatusPending, models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.Transition(context.Background(), "booking-1", models.BookingStatusConfirmed)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := newBookingService(&mockDatabase{db: db}, notify.NewRecorderBus())

	t.Run("Pending Booking Deleted", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "pending", "pending", 2500000))
		mock.ExpectExec(`DELETE FROM bookings`).
			WithArgs("booking-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.Delete("user-1", false, "booking-1")
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Confirmed Booking Rejected", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "confirmed", "paid", 2500000))

		err := svc.Delete("user-1", false, "booking-1")
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// mockDatabase wraps sqlmock's *sql.DB to satisfy the DB interface
type mockDatabase struct {
	db *sql.DB
}

func (m *mockDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *mockDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *mockDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *mockDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *mockDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *mockDatabase) Close() error {
	return m.db.Close()
}

func (m *mockDatabase) Ping() error {
	return m.db.Ping()
}
