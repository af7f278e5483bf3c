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
	"github.com/wandertrip/booking-backend/pkg/pricing"
)

// BookingService owns the booking lifecycle: creation with price
// snapshotting, reads, participant-count edits, status transitions and
// deletion
type BookingService struct {
	bookings *database.BookingRepository
	details  *database.BookingDetailRepository
	products *database.ProductRepository
	bus      notify.Bus
	logger   *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings *database.BookingRepository,
	details *database.BookingDetailRepository,
	products *database.ProductRepository,
	bus notify.Bus,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		details:  details,
		products: products,
		bus:      bus,
		logger:   logger,
	}
}

// Create validates the request, snapshots the product's current price into
// the detail record and inserts the parent plus detail rows. New bookings
// start pending/pending.
func (s *BookingService) Create(ctx context.Context, userID string, req *models.CreateBookingRequest) (*models.BookingWithDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	booking := &models.Booking{
		UserID:        userID,
		BookingType:   req.BookingType,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		DiscountCode:  req.DiscountCode,
	}

	// Price the detail before touching the database so validation failures
	// leave nothing behind
	var createDetail func() error
	switch req.BookingType {
	case models.BookingTypeTour:
		tour, err := s.products.GetTourByID(req.Tour.TourID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFoundf("tour %s not found", req.Tour.TourID)
		}
		if err != nil {
			return nil, apperr.Internal("failed to load tour", err)
		}

		subtotal, err := pricing.TourSubtotal(req.Tour.NumAdults, req.Tour.NumChildren, req.Tour.NumInfants, tour.PriceByAge)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		booking.TotalPrice = subtotal

		detail := &models.BookingTour{
			TourID:      tour.ID,
			NumAdults:   req.Tour.NumAdults,
			NumChildren: req.Tour.NumChildren,
			NumInfants:  req.Tour.NumInfants,
			PriceByAge:  tour.PriceByAge,
			Subtotal:    subtotal,
			Passengers:  req.Tour.Passengers,
			Status:      models.BookingStatusPending,
		}
		createDetail = func() error {
			detail.BookingID = booking.ID
			return s.details.CreateTour(detail)
		}

	case models.BookingTypeFlight:
		// one detail row per leg; the parent total covers the whole itinerary
		legs := make([]*models.BookingFlight, 0, len(req.Flights))
		var total float64
		for i := range req.Flights {
			legReq := &req.Flights[i]
			flight, err := s.products.GetFlightByID(legReq.FlightID)
			if errors.Is(err, database.ErrNotFound) {
				return nil, apperr.NotFoundf("flight %s not found", legReq.FlightID)
			}
			if err != nil {
				return nil, apperr.Internal("failed to load flight", err)
			}

			subtotal, err := pricing.FlightSubtotal(legReq.NumAdults, legReq.NumChildren, legReq.NumInfants, flight.PriceByClass, legReq.ClassType)
			if err != nil {
				return nil, apperr.Validation(err.Error())
			}
			total += subtotal

			legs = append(legs, &models.BookingFlight{
				FlightID:     flight.ID,
				NumAdults:    legReq.NumAdults,
				NumChildren:  legReq.NumChildren,
				NumInfants:   legReq.NumInfants,
				PriceByClass: flight.PriceByClass,
				ClassType:    legReq.ClassType,
				Subtotal:     subtotal,
				Passengers:   legReq.Passengers,
				Status:       models.BookingStatusPending,
			})
		}
		booking.TotalPrice = total

		createDetail = func() error {
			for _, leg := range legs {
				leg.BookingID = booking.ID
				if err := s.details.CreateFlight(leg); err != nil {
					return err
				}
			}
			return nil
		}

	case models.BookingTypeActivity:
		activity, err := s.products.GetActivityByID(req.Activity.ActivityID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFoundf("activity %s not found", req.Activity.ActivityID)
		}
		if err != nil {
			return nil, apperr.Internal("failed to load activity", err)
		}

		subtotal, err := pricing.ActivitySubtotal(req.Activity.NumAdults, req.Activity.NumChildren, req.Activity.NumBabies, req.Activity.NumSeniors, activity.RetailPrice)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		booking.TotalPrice = subtotal

		detail := &models.BookingActivity{
			ActivityID:    activity.ID,
			NumAdults:     req.Activity.NumAdults,
			NumChildren:   req.Activity.NumChildren,
			NumBabies:     req.Activity.NumBabies,
			NumSeniors:    req.Activity.NumSeniors,
			RetailPrice:   activity.RetailPrice,
			ScheduledDate: *req.Activity.ScheduledDate,
			Subtotal:      subtotal,
			Status:        models.BookingStatusPending,
		}
		createDetail = func() error {
			detail.BookingID = booking.ID
			return s.details.CreateActivity(detail)
		}
	}

	if err := s.bookings.Create(booking); err != nil {
		return nil, apperr.Internal("failed to create booking", err)
	}

	if err := createDetail(); err != nil {
		// compensate: a parent without its detail row is unusable
		if delErr := s.bookings.Delete(booking.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("booking_id", booking.ID).
				Error("Failed to roll back booking after detail insert failure")
		}
		return nil, apperr.Internal("failed to create booking detail", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"user_id":      userID,
		"booking_type": booking.BookingType,
		"total_price":  booking.TotalPrice,
	}).Info("Booking created")

	s.bus.NotifyAdmin(ctx, notify.Event{
		Type:      notify.EventBookingCreated,
		BookingID: booking.ID,
		UserID:    userID,
		Message:   fmt.Sprintf("New %s booking", booking.BookingType),
		Data: map[string]interface{}{
			"booking_type": booking.BookingType,
			"total_price":  booking.TotalPrice,
		},
	})

	return s.withDetail(booking)
}

// GetByID retrieves one booking with its detail. Non-admin callers only see
// their own bookings; someone else's booking looks like a missing one.
func (s *BookingService) GetByID(userID string, isAdmin bool, bookingID string) (*models.BookingWithDetail, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}

	if !isAdmin && booking.UserID != userID {
		return nil, apperr.NotFound("booking not found")
	}

	return s.withDetail(booking)
}

// ListForUser retrieves the caller's bookings, newest first
func (s *BookingService) ListForUser(userID string) ([]models.Booking, error) {
	bookings, err := s.bookings.GetByUserID(userID)
	if err != nil {
		return nil, apperr.Internal("failed to list bookings", err)
	}
	return bookings, nil
}

// List retrieves all bookings for admin views, optionally filtered by status
func (s *BookingService) List(status string) ([]models.Booking, error) {
	filter := models.BookingStatus(status)
	if status != "" && !filter.IsValid() {
		return nil, apperr.Validationf("unknown status %q", status)
	}

	bookings, err := s.bookings.List(filter)
	if err != nil {
		return nil, apperr.Internal("failed to list bookings", err)
	}
	return bookings, nil
}

// UpdateDetail edits participant counts on a booking's detail and recomputes
// the subtotal from the frozen price snapshot. Terminal bookings are
// immutable.
func (s *BookingService) UpdateDetail(ctx context.Context, userID string, isAdmin bool, bookingID string, req *models.UpdateDetailRequest) (*models.BookingWithDetail, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}

	if !isAdmin && booking.UserID != userID {
		return nil, apperr.NotFound("booking not found")
	}
	if booking.Status.IsTerminal() {
		return nil, apperr.InvalidStatef("booking is %s and can no longer be modified", booking.Status)
	}

	var total float64
	switch booking.BookingType {
	case models.BookingTypeTour:
		detail, err := s.details.GetTourByBookingID(bookingID)
		if err != nil {
			return nil, apperr.Internal("failed to load booking detail", err)
		}

		adults := pick(req.NumAdults, detail.NumAdults)
		children := pick(req.NumChildren, detail.NumChildren)
		infants := pick(req.NumInfants, detail.NumInfants)

		subtotal, err := pricing.TourSubtotal(adults, children, infants, detail.PriceByAge)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		if err := s.details.UpdateTourCounts(bookingID, adults, children, infants, subtotal); err != nil {
			return nil, apperr.Internal("failed to update booking detail", err)
		}
		total = subtotal

	case models.BookingTypeFlight:
		legs, err := s.details.GetFlightsByBookingID(bookingID)
		if err != nil {
			return nil, apperr.Internal("failed to load booking detail", err)
		}
		if len(legs) == 0 {
			return nil, apperr.Internal("booking has no flight legs", nil)
		}

		// the same party flies every leg, so counts apply across all of them
		for _, leg := range legs {
			adults := pick(req.NumAdults, leg.NumAdults)
			children := pick(req.NumChildren, leg.NumChildren)
			infants := pick(req.NumInfants, leg.NumInfants)

			subtotal, err := pricing.FlightSubtotal(adults, children, infants, leg.PriceByClass, leg.ClassType)
			if err != nil {
				return nil, apperr.Validation(err.Error())
			}
			if err := s.details.UpdateFlightCounts(leg.ID, adults, children, infants, subtotal); err != nil {
				return nil, apperr.Internal("failed to update flight leg", err)
			}
			total += subtotal
		}

	case models.BookingTypeActivity:
		detail, err := s.details.GetActivityByBookingID(bookingID)
		if err != nil {
			return nil, apperr.Internal("failed to load booking detail", err)
		}

		adults := pick(req.NumAdults, detail.NumAdults)
		children := pick(req.NumChildren, detail.NumChildren)
		babies := pick(req.NumBabies, detail.NumBabies)
		seniors := pick(req.NumSeniors, detail.NumSeniors)

		subtotal, err := pricing.ActivitySubtotal(adults, children, babies, seniors, detail.RetailPrice)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		if err := s.details.UpdateActivityCounts(bookingID, adults, children, babies, seniors, subtotal); err != nil {
			return nil, apperr.Internal("failed to update booking detail", err)
		}
		total = subtotal
	}

	if err := s.bookings.UpdateTotalPrice(bookingID, total); err != nil {
		return nil, apperr.Internal("failed to update booking total", err)
	}

	booking.TotalPrice = total
	return s.withDetail(booking)
}

// Delete removes a booking. Only unpaid pending bookings can be deleted; paid
// or in-flight bookings go through the cancellation workflow instead.
func (s *BookingService) Delete(userID string, isAdmin bool, bookingID string) error {
	booking, err := s.bookings.GetByID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("booking not found")
	}
	if err != nil {
		return apperr.Internal("failed to load booking", err)
	}

	if !isAdmin && booking.UserID != userID {
		return apperr.NotFound("booking not found")
	}
	if booking.Status != models.BookingStatusPending {
		return apperr.InvalidStatef("only pending bookings can be deleted, this one is %s", booking.Status)
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return apperr.InvalidState("paid bookings cannot be deleted")
	}

	if err := s.bookings.Delete(bookingID); err != nil {
		return apperr.Internal("failed to delete booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"user_id":    userID,
	}).Info("Booking deleted")

	return nil
}

// Transition moves a booking to a new status, enforcing the lifecycle rules.
// The detail rows mirror the new status and the owner is notified.
func (s *BookingService) Transition(ctx context.Context, bookingID string, to models.BookingStatus) (*models.Booking, error) {
	if !to.IsValid() {
		return nil, apperr.Validationf("unknown status %q", to)
	}

	booking, err := s.bookings.GetByID(bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}

	if !booking.Status.CanTransitionTo(to) {
		return nil, apperr.InvalidStatef("cannot move booking from %s to %s", booking.Status, to)
	}

	if err := s.bookings.UpdateStatus(bookingID, booking.Status, to); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			return nil, apperr.Conflict("booking status changed, retry the operation")
		}
		return nil, apperr.Internal("failed to update booking status", err)
	}

	if err := s.details.SyncStatus(bookingID, booking.BookingType, to); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).
			Error("Failed to mirror status onto booking detail")
	}

	from := booking.Status
	booking.Status = to

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       from,
		"to":         to,
	}).Info("Booking status changed")

	// both channels hear about the change: the owner for their booking view,
	// the admin dashboard for the updated record
	s.bus.NotifyUser(ctx, booking.UserID, notify.Event{
		Type:      notify.EventBookingStatusChanged,
		BookingID: bookingID,
		Message:   fmt.Sprintf("Your booking is now %s", to),
		Data:      map[string]interface{}{"from": from, "to": to},
	})
	s.bus.NotifyAdmin(ctx, notify.Event{
		Type:      notify.EventBookingStatusChanged,
		BookingID: bookingID,
		UserID:    booking.UserID,
		Message:   fmt.Sprintf("Booking %s is now %s", bookingID, to),
		Data:      map[string]interface{}{"from": from, "to": to},
	})

	return booking, nil
}

// withDetail attaches the detail rows matching the booking's type
func (s *BookingService) withDetail(booking *models.Booking) (*models.BookingWithDetail, error) {
	result := &models.BookingWithDetail{Booking: *booking}

	switch booking.BookingType {
	case models.BookingTypeTour:
		detail, err := s.details.GetTourByBookingID(booking.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Internal("failed to load booking detail", err)
		}
		result.Detail.Tour = detail
	case models.BookingTypeFlight:
		legs, err := s.details.GetFlightsByBookingID(booking.ID)
		if err != nil {
			return nil, apperr.Internal("failed to load booking detail", err)
		}
		result.Detail.Flights = legs
	case models.BookingTypeActivity:
		detail, err := s.details.GetActivityByBookingID(booking.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Internal("failed to load booking detail", err)
		}
		result.Detail.Activity = detail
	}

	return result, nil
}

func pick(override *int, current int) int {
	if override != nil {
		return *override
	}
	return current
}
