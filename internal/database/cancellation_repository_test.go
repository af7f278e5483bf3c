package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wandertrip/booking-backend/internal/models"
)

func cancellationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "booking_id", "user_id", "booking_type", "reason", "status",
		"admin_note", "processed_by", "processed_at", "created_at", "updated_at",
		"full_name", "email",
	})
}

func TestCreateCancellationRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewCancellationRepository(mockDB)

	now := time.Now()

	mock.ExpectQuery(`INSERT INTO cancellation_requests`).
		WithArgs(sqlmock.AnyArg(), "booking-1", "user-1", models.BookingTypeTour,
			"change of plans", models.CancellationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := &models.CancellationRequest{
		BookingID:   "booking-1",
		UserID:      "user-1",
		BookingType: models.BookingTypeTour,
		Reason:      "change of plans",
		Status:      models.CancellationStatusPending,
	}
	err = repo.Create(req)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingByBookingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewCancellationRepository(mockDB)

	t.Run("Found", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("booking-1").
			WillReturnRows(cancellationRows().AddRow(
				"req-1", "booking-1", "user-1", "tour", "change of plans", "pending",
				nil, nil, nil, now, now,
				"Nguyen Van A", "a@example.com",
			))

		req, err := repo.GetPendingByBookingID("booking-1")
		require.NoError(t, err)
		assert.Equal(t, "req-1", req.ID)
		assert.Equal(t, models.CancellationStatusPending, req.Status)
		assert.Nil(t, req.AdminNote)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("None Pending", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_requests cr`).
			WithArgs("booking-1").
			WillReturnError(sql.ErrNoRows)

		req, err := repo.GetPendingByBookingID("booking-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, req)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProcessCancellationRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewCancellationRepository(mockDB)

	note := "refund issued manually"

	t.Run("Approve", func(t *testing.T) {
		mock.ExpectExec(`UPDATE cancellation_requests`).
			WithArgs("req-1", models.CancellationStatusApproved, &note, "admin-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Process("req-1", models.CancellationStatusApproved, &note, "admin-1")
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Processed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE cancellation_requests`).
			WithArgs("req-1", models.CancellationStatusRejected, &note, "admin-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Process("req-1", models.CancellationStatusRejected, &note, "admin-1")
		assert.ErrorIs(t, err, ErrStaleStatus)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
