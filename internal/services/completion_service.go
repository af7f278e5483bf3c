package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/notify"
)

// CompletionService is the background job that moves confirmed bookings to
// completed once their service has ended: tours after the tour end date,
// flights after the last leg's arrival, activities after the scheduled day.
type CompletionService struct {
	repo     *database.CompletionRepository
	details  *database.BookingDetailRepository
	bus      notify.Bus
	logger   *logrus.Logger
	stopCh   chan struct{}
	interval time.Duration
	now      func() time.Time
}

// CompletionSummary reports one sweep's outcome
type CompletionSummary struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// NewCompletionService creates a new completion service
func NewCompletionService(
	repo *database.CompletionRepository,
	details *database.BookingDetailRepository,
	bus notify.Bus,
	logger *logrus.Logger,
	interval time.Duration,
) *CompletionService {
	return &CompletionService{
		repo:     repo,
		details:  details,
		bus:      bus,
		logger:   logger,
		stopCh:   make(chan struct{}),
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the background completion job
func (s *CompletionService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting booking completion service")
	go s.run()
}

// Stop stops the background completion job
func (s *CompletionService) Stop() {
	s.logger.Info("Stopping booking completion service")
	close(s.stopCh)
}

func (s *CompletionService) run() {
	// Run immediately on start
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Booking completion service stopped")
			return
		}
	}
}

func (s *CompletionService) sweep() {
	summary, err := s.RunOnce(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Completion sweep failed")
		return
	}
	if summary.Checked > 0 {
		s.logger.WithFields(logrus.Fields{
			"checked":   summary.Checked,
			"completed": summary.Completed,
			"skipped":   summary.Skipped,
			"errors":    summary.Errors,
		}).Info("Completion sweep finished")
	}
}

// candidate pairs a booking with its computed service end moment
type candidate struct {
	bookingID   string
	userID      string
	bookingType models.BookingType
	end         models.ServiceEnd
}

// RunOnce performs a single completion sweep. A failure on one booking never
// stops the rest of the sweep.
func (s *CompletionService) RunOnce(ctx context.Context) (*CompletionSummary, error) {
	candidates, err := s.collect()
	if err != nil {
		return nil, err
	}

	summary := &CompletionSummary{Checked: len(candidates)}
	now := s.now()

	for _, c := range candidates {
		end, ok := c.end.ServiceEndMoment()
		if !ok || now.Before(end) {
			summary.Skipped++
			continue
		}

		if err := s.complete(ctx, c); err != nil {
			if errors.Is(err, database.ErrStaleStatus) {
				// another sweep or an admin got there first
				summary.Skipped++
				continue
			}
			summary.Errors++
			s.logger.WithError(err).WithField("booking_id", c.bookingID).
				Error("Failed to complete booking")
			continue
		}
		summary.Completed++
	}

	return summary, nil
}

func (s *CompletionService) collect() ([]candidate, error) {
	tours, err := s.repo.ListConfirmedTours()
	if err != nil {
		return nil, err
	}
	legs, err := s.repo.ListConfirmedFlightLegs()
	if err != nil {
		return nil, err
	}
	activities, err := s.repo.ListConfirmedActivities()
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(tours)+len(activities))
	for _, t := range tours {
		candidates = append(candidates, candidate{
			bookingID:   t.BookingID,
			userID:      t.UserID,
			bookingType: models.BookingTypeTour,
			end:         models.TourCompletion{EndDate: t.EndDate},
		})
	}

	flightUsers := make(map[string]string, len(legs))
	for _, leg := range legs {
		flightUsers[leg.BookingID] = leg.UserID
	}
	for bookingID, completion := range database.GroupFlightLegs(legs) {
		candidates = append(candidates, candidate{
			bookingID:   bookingID,
			userID:      flightUsers[bookingID],
			bookingType: models.BookingTypeFlight,
			end:         completion,
		})
	}

	for _, a := range activities {
		candidates = append(candidates, candidate{
			bookingID:   a.BookingID,
			userID:      a.UserID,
			bookingType: models.BookingTypeActivity,
			end:         models.ActivityCompletion{ScheduledDate: a.ScheduledDate},
		})
	}

	return candidates, nil
}

func (s *CompletionService) complete(ctx context.Context, c candidate) error {
	if err := s.repo.Complete(c.bookingID); err != nil {
		return err
	}

	if err := s.details.SyncStatus(c.bookingID, c.bookingType, models.BookingStatusCompleted); err != nil {
		s.logger.WithError(err).WithField("booking_id", c.bookingID).
			Error("Failed to mirror completion onto booking detail")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   c.bookingID,
		"booking_type": c.bookingType,
	}).Info("Booking auto-completed")

	s.bus.NotifyUser(ctx, c.userID, notify.Event{
		Type:      notify.EventBookingStatusChanged,
		BookingID: c.bookingID,
		Message:   "Your booking is now completed",
		Data:      map[string]interface{}{"to": models.BookingStatusCompleted},
	})
	s.bus.NotifyAdmin(ctx, notify.Event{
		Type:      notify.EventBookingStatusChanged,
		BookingID: c.bookingID,
		UserID:    c.userID,
		Message:   fmt.Sprintf("Booking %s auto-completed", c.bookingID),
		Data:      map[string]interface{}{"to": models.BookingStatusCompleted},
	})

	return nil
}
