package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wandertrip/booking-backend/internal/apperr"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/notify"
	"github.com/wandertrip/booking-backend/internal/queue"
)

func newCancellationService(db database.DB, bus notify.Bus, emails queue.EmailPublisher) *CancellationService {
	return NewCancellationService(
		database.NewCancellationRepository(db),
		database.NewBookingRepository(db),
		database.NewBookingDetailRepository(db),
		bus,
		emails,
		testLogger(),
	)
}

func cancellationSelectRows(id, bookingID, userID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "booking_id", "user_id", "booking_type", "reason", "status",
		"admin_note", "processed_by", "processed_at", "created_at", "updated_at",
		"full_name", "email",
	}).AddRow(
		id, bookingID, userID, "tour", "change of plans", status,
		nil, nil, nil, now, now,
		"Nguyen Van A", "a@example.com",
	)
}

func TestSubmitCancellationRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	emails := &queue.RecorderPublisher{}
	svc := newCancellationService(&mockDatabase{db: db}, bus, emails)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "confirmed", "paid", 2500000))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("booking-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO cancellation_requests`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		request, err := svc.Submit(context.Background(), "user-1", "booking-1",
			&models.CreateCancellationRequest{Reason: "change of plans"})
		require.NoError(t, err)
		assert.Equal(t, models.CancellationStatusPending, request.Status)
		assert.Equal(t, models.BookingTypeTour, request.BookingType)

		// admins hear about new requests, the customer gets an email
		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventCancellationRequested, bus.AdminEvents[0].Type)
		require.Len(t, emails.Jobs, 1)
		assert.Equal(t, queue.TemplateCancellationReceived, emails.Jobs[0].Template)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not The Owner", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "owner-user", "tour", "confirmed", "paid", 2500000))

		_, err := svc.Submit(context.Background(), "other-user", "booking-1",
			&models.CreateCancellationRequest{Reason: "change of plans"})
		assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Completed Booking Cannot Be Cancelled", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "completed", "paid", 2500000))

		_, err := svc.Submit(context.Background(), "user-1", "booking-1",
			&models.CreateCancellationRequest{Reason: "change of plans"})
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Pending Request", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "confirmed", "paid", 2500000))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("booking-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "pending"))

		_, err := svc.Submit(context.Background(), "user-1", "booking-1",
			&models.CreateCancellationRequest{Reason: "changed my mind again"})
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Reason", func(t *testing.T) {
		_, err := svc.Submit(context.Background(), "user-1", "booking-1",
			&models.CreateCancellationRequest{})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestApproveCancellationRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	emails := &queue.RecorderPublisher{}
	svc := newCancellationService(&mockDatabase{db: db}, bus, emails)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "confirmed", "paid", 2500000))
		mock.ExpectExec(`UPDATE cancellation_requests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs("booking-1", models.BookingStatusConfirmed, models.BookingStatusCancelled).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE booking_tours`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "approved"))

		request, err := svc.Approve(context.Background(), "admin-1", "req-1", "refund issued")
		require.NoError(t, err)
		assert.Equal(t, models.CancellationStatusApproved, request.Status)

		// the customer and the admin channel both learn the outcome
		require.Len(t, bus.UserEvents["user-1"], 1)
		assert.Equal(t, notify.EventCancellationProcessed, bus.UserEvents["user-1"][0].Type)
		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventCancellationProcessed, bus.AdminEvents[0].Type)
		assert.Equal(t, "user-1", bus.AdminEvents[0].UserID)
		require.Len(t, emails.Jobs, 1)
		assert.Equal(t, queue.TemplateCancellationApproved, emails.Jobs[0].Template)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Processed", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "rejected"))

		_, err := svc.Approve(context.Background(), "admin-1", "req-1", "")
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Processed By Another Admin Concurrently", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM bookings b`).
			WithArgs("booking-1").
			WillReturnRows(bookingSelectRows("booking-1", "user-1", "tour", "confirmed", "paid", 2500000))
		mock.ExpectExec(`UPDATE cancellation_requests`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.Approve(context.Background(), "admin-1", "req-1", "")
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRejectCancellationRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := notify.NewRecorderBus()
	emails := &queue.RecorderPublisher{}
	svc := newCancellationService(&mockDatabase{db: db}, bus, emails)

	t.Run("Note Is Mandatory", func(t *testing.T) {
		_, err := svc.Reject(context.Background(), "admin-1", "req-1", "")
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("Success Leaves Booking Untouched", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "pending"))
		mock.ExpectExec(`UPDATE cancellation_requests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("req-1").
			WillReturnRows(cancellationSelectRows("req-1", "booking-1", "user-1", "rejected"))

		request, err := svc.Reject(context.Background(), "admin-1", "req-1", "too close to departure")
		require.NoError(t, err)
		assert.Equal(t, models.CancellationStatusRejected, request.Status)

		require.Len(t, bus.UserEvents["user-1"], 1)
		require.Len(t, bus.AdminEvents, 1)
		assert.Equal(t, notify.EventCancellationProcessed, bus.AdminEvents[0].Type)
		require.Len(t, emails.Jobs, 1)
		assert.Equal(t, queue.TemplateCancellationRejected, emails.Jobs[0].Template)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
