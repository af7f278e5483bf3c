package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wandertrip/booking-backend/internal/apperr"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/notify"
	"github.com/wandertrip/booking-backend/internal/queue"
)

// CancellationService owns the cancellation request workflow: customers
// submit requests against their bookings, admins approve or reject them, and
// an approval drives the booking to cancelled.
type CancellationService struct {
	requests *database.CancellationRepository
	bookings *database.BookingRepository
	details  *database.BookingDetailRepository
	bus      notify.Bus
	emails   queue.EmailPublisher
	logger   *logrus.Logger
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	requests *database.CancellationRepository,
	bookings *database.BookingRepository,
	details *database.BookingDetailRepository,
	bus notify.Bus,
	emails queue.EmailPublisher,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		requests: requests,
		bookings: bookings,
		details:  details,
		bus:      bus,
		emails:   emails,
		logger:   logger,
	}
}

// Submit files a cancellation request for a booking the caller owns. The
// booking must still be cancellable and must not already have an open
// request.
func (s *CancellationService) Submit(ctx context.Context, userID string, bookingID string, req *models.CreateCancellationRequest) (*models.CancellationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	booking, err := s.bookings.GetByID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}

	if booking.UserID != userID {
		return nil, apperr.Authorization("you can only request cancellation of your own bookings")
	}
	if !booking.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return nil, apperr.InvalidStatef("a %s booking cannot be cancelled", booking.Status)
	}

	if _, err := s.requests.GetPendingByBookingID(bookingID); err == nil {
		return nil, apperr.Conflict("a cancellation request for this booking is already pending")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("failed to check pending requests", err)
	}

	request := &models.CancellationRequest{
		BookingID:   bookingID,
		UserID:      userID,
		BookingType: booking.BookingType,
		Reason:      req.Reason,
		Status:      models.CancellationStatusPending,
	}
	if err := s.requests.Create(request); err != nil {
		return nil, apperr.Internal("failed to create cancellation request", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"booking_id": bookingID,
		"user_id":    userID,
	}).Info("Cancellation request submitted")

	s.bus.NotifyAdmin(ctx, notify.Event{
		Type:      notify.EventCancellationRequested,
		BookingID: bookingID,
		UserID:    userID,
		Message:   fmt.Sprintf("New cancellation request for %s booking %s", booking.BookingType, bookingID),
		Data:      map[string]interface{}{"request_id": request.ID, "reason": req.Reason},
	})
	s.emails.Publish(ctx, queue.EmailJob{
		To:       booking.OwnerEmail,
		ToName:   booking.OwnerName,
		Template: queue.TemplateCancellationReceived,
		Subject:  "We received your cancellation request",
		Data: map[string]interface{}{
			"booking_id": bookingID,
			"request_id": request.ID,
		},
	})

	return request, nil
}

// Approve accepts a pending request and cancels the underlying booking
func (s *CancellationService) Approve(ctx context.Context, adminID string, requestID string, note string) (*models.CancellationRequest, error) {
	request, err := s.requests.GetByID(requestID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("cancellation request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load cancellation request", err)
	}
	if request.Status.IsProcessed() {
		return nil, apperr.InvalidStatef("request was already %s", request.Status)
	}

	booking, err := s.bookings.GetByID(request.BookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("booking behind request is gone", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}
	if !booking.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return nil, apperr.InvalidStatef("booking is already %s and cannot be cancelled", booking.Status)
	}

	var adminNote *string
	if note != "" {
		adminNote = &note
	}
	if err := s.requests.Process(requestID, models.CancellationStatusApproved, adminNote, adminID); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			return nil, apperr.Conflict("request was processed by another admin")
		}
		return nil, apperr.Internal("failed to process cancellation request", err)
	}

	if err := s.bookings.UpdateStatus(request.BookingID, booking.Status, models.BookingStatusCancelled); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			// approved but the booking moved underneath us; surface the
			// conflict so an admin re-checks the booking
			return nil, apperr.Conflict("booking status changed while approving, verify the booking")
		}
		return nil, apperr.Internal("failed to cancel booking", err)
	}
	if err := s.details.SyncStatus(request.BookingID, request.BookingType, models.BookingStatusCancelled); err != nil {
		s.logger.WithError(err).WithField("booking_id", request.BookingID).
			Error("Failed to mirror cancellation onto booking detail")
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"booking_id": request.BookingID,
		"admin_id":   adminID,
	}).Info("Cancellation request approved")

	s.notifyProcessed(ctx, request, models.CancellationStatusApproved, note)

	return s.reload(requestID, request)
}

// Reject declines a pending request. The admin note is mandatory so the
// customer always learns why.
func (s *CancellationService) Reject(ctx context.Context, adminID string, requestID string, note string) (*models.CancellationRequest, error) {
	if note == "" {
		return nil, apperr.Validation("admin_note is required when rejecting a request")
	}

	request, err := s.requests.GetByID(requestID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("cancellation request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load cancellation request", err)
	}
	if request.Status.IsProcessed() {
		return nil, apperr.InvalidStatef("request was already %s", request.Status)
	}

	if err := s.requests.Process(requestID, models.CancellationStatusRejected, &note, adminID); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			return nil, apperr.Conflict("request was processed by another admin")
		}
		return nil, apperr.Internal("failed to process cancellation request", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"booking_id": request.BookingID,
		"admin_id":   adminID,
	}).Info("Cancellation request rejected")

	s.notifyProcessed(ctx, request, models.CancellationStatusRejected, note)

	return s.reload(requestID, request)
}

// GetPendingForBooking returns the open request on a booking. Owners and
// admins may look; anyone else sees not found.
func (s *CancellationService) GetPendingForBooking(userID string, isAdmin bool, bookingID string) (*models.CancellationRequest, error) {
	request, err := s.requests.GetPendingByBookingID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("no pending cancellation request for this booking")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load cancellation request", err)
	}

	if !isAdmin && request.UserID != userID {
		return nil, apperr.NotFound("no pending cancellation request for this booking")
	}
	return request, nil
}

// ListForUser retrieves the caller's cancellation requests, newest first
func (s *CancellationService) ListForUser(userID string) ([]models.CancellationRequest, error) {
	requests, err := s.requests.GetByUserID(userID)
	if err != nil {
		return nil, apperr.Internal("failed to list cancellation requests", err)
	}
	return requests, nil
}

// List retrieves requests for admin review with optional status and
// booking-type filters
func (s *CancellationService) List(status, bookingType string) ([]models.CancellationRequest, error) {
	filter := models.CancellationListFilter{
		Status:      models.CancellationStatus(status),
		BookingType: models.BookingType(bookingType),
	}
	if status != "" && !filter.Status.IsValid() {
		return nil, apperr.Validationf("unknown status %q", status)
	}
	if bookingType != "" && !filter.BookingType.IsValid() {
		return nil, apperr.Validationf("unknown booking type %q", bookingType)
	}

	requests, err := s.requests.List(filter)
	if err != nil {
		return nil, apperr.Internal("failed to list cancellation requests", err)
	}
	return requests, nil
}

// CountPending returns the number of requests awaiting review, for the admin
// dashboard badge
func (s *CancellationService) CountPending() (int, error) {
	count, err := s.requests.CountPending()
	if err != nil {
		return 0, apperr.Internal("failed to count pending requests", err)
	}
	return count, nil
}

func (s *CancellationService) notifyProcessed(ctx context.Context, request *models.CancellationRequest, decision models.CancellationStatus, note string) {
	s.bus.NotifyUser(ctx, request.UserID, notify.Event{
		Type:      notify.EventCancellationProcessed,
		BookingID: request.BookingID,
		Message:   fmt.Sprintf("Your cancellation request was %s", decision),
		Data:      map[string]interface{}{"request_id": request.ID, "decision": decision, "admin_note": note},
	})
	// other admins watching the queue see the request leave it
	s.bus.NotifyAdmin(ctx, notify.Event{
		Type:      notify.EventCancellationProcessed,
		BookingID: request.BookingID,
		UserID:    request.UserID,
		Message:   fmt.Sprintf("Cancellation request %s was %s", request.ID, decision),
		Data:      map[string]interface{}{"request_id": request.ID, "decision": decision, "admin_note": note},
	})

	template := queue.TemplateCancellationApproved
	subject := "Your cancellation request was approved"
	if decision == models.CancellationStatusRejected {
		template = queue.TemplateCancellationRejected
		subject = "Your cancellation request was rejected"
	}
	s.emails.Publish(ctx, queue.EmailJob{
		To:       request.UserEmail,
		ToName:   request.UserName,
		Template: template,
		Subject:  subject,
		Data: map[string]interface{}{
			"booking_id": request.BookingID,
			"request_id": request.ID,
			"admin_note": note,
		},
	})
}

// reload refetches the processed request, falling back to the stale copy if
// the read fails
func (s *CancellationService) reload(requestID string, fallback *models.CancellationRequest) (*models.CancellationRequest, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).
			Warn("Failed to reload processed request")
		return fallback, nil
	}
	return request, nil
}
