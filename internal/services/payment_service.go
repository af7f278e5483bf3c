package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wandertrip/booking-backend/internal/apperr"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/notify"
	"github.com/wandertrip/booking-backend/internal/queue"
	"github.com/wandertrip/booking-backend/internal/utils"
	"github.com/wandertrip/booking-backend/pkg/zalopay"
)

// PaymentService drives the ZaloPay flow: order creation, callback
// reconciliation and status queries. Every gateway interaction leaves a row
// in the payment audit trail.
type PaymentService struct {
	bookings *database.BookingRepository
	details  *database.BookingDetailRepository
	audits   *database.PaymentAuditRepository
	gateway  *zalopay.Client
	bus      notify.Bus
	emails   queue.EmailPublisher
	logger   *logrus.Logger
}

// CallerMeta carries request metadata into the audit trail
type CallerMeta struct {
	IP        string
	UserAgent string
}

// CallbackResult is the envelope returned to the gateway after a callback
type CallbackResult struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookings *database.BookingRepository,
	details *database.BookingDetailRepository,
	audits *database.PaymentAuditRepository,
	gateway *zalopay.Client,
	bus notify.Bus,
	emails queue.EmailPublisher,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		bookings: bookings,
		details:  details,
		audits:   audits,
		gateway:  gateway,
		bus:      bus,
		emails:   emails,
		logger:   logger,
	}
}

// CreateOrder registers a payment order with the gateway for an unpaid
// zalopay booking and stores the order reference and payment URL
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, isAdmin bool, bookingID string, meta CallerMeta) (*models.Booking, error) {
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
	if booking.PaymentMethod != models.PaymentMethodZaloPay {
		return nil, apperr.InvalidStatef("booking pays by %s, not zalopay", booking.PaymentMethod)
	}
	if booking.PaymentStatus != models.PaymentStatusPending {
		return nil, apperr.InvalidStatef("booking payment is already %s", booking.PaymentStatus)
	}
	if booking.Status != models.BookingStatusPending {
		return nil, apperr.InvalidStatef("a %s booking cannot start payment", booking.Status)
	}

	// Reuse the existing order if one was already created
	if booking.AppTransID != nil && booking.OrderURL != nil {
		return booking, nil
	}

	appTransID := zalopay.NewAppTransID(time.Now(), strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	amount := int64(booking.TotalPrice)

	device := utils.ParseUserAgent(meta.UserAgent)
	initAudit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceUser).
		SetBooking(bookingID).
		SetAppTransID(appTransID).
		SetMetadata(meta.IP, meta.UserAgent).
		SetRequestPayload(map[string]interface{}{
			"amount":      amount,
			"device_info": device.Map(),
		})
	s.writeAudit(initAudit)

	resp, err := s.gateway.CreateOrder(ctx, zalopay.CreateOrderRequest{
		AppTransID:  appTransID,
		AppUser:     booking.UserID,
		Amount:      amount,
		Description: fmt.Sprintf("WanderTrip %s booking %s", booking.BookingType, bookingID),
	})
	if err != nil {
		s.writeAudit(models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceZaloPayAPI).
			SetBooking(bookingID).
			SetAppTransID(appTransID).
			SetError(err.Error()))
		return nil, apperr.Upstream("payment gateway unreachable", err)
	}

	respAudit := models.NewPaymentAudit(models.PaymentEventResponse, models.PaymentSourceZaloPayAPI).
		SetBooking(bookingID).
		SetAppTransID(appTransID).
		SetResponsePayload(map[string]interface{}{
			"return_code":    resp.ReturnCode,
			"return_message": resp.ReturnMessage,
			"order_url":      resp.OrderURL,
		})
	s.writeAudit(respAudit)

	if !resp.Success() {
		return nil, apperr.Upstream(
			fmt.Sprintf("payment gateway rejected the order: %s", resp.ReturnMessage), nil)
	}

	if err := s.bookings.SetPaymentOrder(bookingID, appTransID, resp.OrderURL); err != nil {
		return nil, apperr.Internal("failed to store payment order", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   bookingID,
		"app_trans_id": appTransID,
		"amount":       amount,
	}).Info("ZaloPay order created")

	booking.AppTransID = &appTransID
	booking.OrderURL = &resp.OrderURL
	return booking, nil
}

// HandleCallback reconciles a gateway callback against the booking it names.
// The return envelope follows the gateway contract: 1 settles the callback,
// 0 asks the gateway to retry, -1 reports a bad signature. Replayed
// callbacks for an already-paid booking are acknowledged without mutation.
func (s *PaymentService) HandleCallback(ctx context.Context, env zalopay.CallbackEnvelope, meta CallerMeta) CallbackResult {
	recvAudit := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceZaloPayCallback).
		SetRawBody(env.Data).
		SetMetadata(meta.IP, meta.UserAgent)

	data, err := s.gateway.VerifyCallback(env)
	if err != nil {
		recvAudit.SetError(err.Error())
		s.writeAudit(recvAudit)

		if errors.Is(err, zalopay.ErrInvalidMac) {
			s.logger.WithField("ip", meta.IP).Warn("ZaloPay callback with invalid mac")
			return CallbackResult{ReturnCode: zalopay.CallbackCodeInvalidMac, ReturnMessage: "mac not equal"}
		}
		return CallbackResult{ReturnCode: zalopay.CallbackCodeRetry, ReturnMessage: "malformed callback data"}
	}

	recvAudit.SetAppTransID(data.AppTransID)
	s.writeAudit(recvAudit)

	booking, err := s.bookings.GetByAppTransID(data.AppTransID)
	if errors.Is(err, database.ErrNotFound) {
		s.writeAudit(models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceZaloPayCallback).
			SetAppTransID(data.AppTransID).
			SetError("no booking for app_trans_id"))
		return CallbackResult{ReturnCode: zalopay.CallbackCodeRetry, ReturnMessage: "order not found"}
	}
	if err != nil {
		return CallbackResult{ReturnCode: zalopay.CallbackCodeRetry, ReturnMessage: "internal error"}
	}

	zpTransID := strconv.FormatInt(data.ZPTransID, 10)

	amountAudit := models.NewPaymentAudit(models.PaymentEventSuccess, models.PaymentSourceZaloPayCallback).
		SetBooking(booking.ID).
		SetAppTransID(data.AppTransID).
		SetZPTransID(zpTransID).
		SetPaymentStatus("paid")
	if !amountAudit.SetAmounts(booking.TotalPrice, float64(data.Amount)) {
		amountAudit.EventType = models.PaymentEventError
		amountAudit.SetError("callback amount does not match booking total")
		s.writeAudit(amountAudit)

		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"expected":   booking.TotalPrice,
			"received":   data.Amount,
		}).Error("ZaloPay callback amount mismatch")
		return CallbackResult{ReturnCode: zalopay.CallbackCodeRetry, ReturnMessage: "amount mismatch"}
	}

	paidAt := time.UnixMilli(data.ServerTime)
	if data.ServerTime == 0 {
		paidAt = time.Now()
	}

	if err := s.bookings.MarkPaid(booking.ID, zpTransID, paidAt); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			// replayed callback, already settled
			s.writeAudit(amountAudit.SetError("duplicate callback, booking already paid"))
			return CallbackResult{ReturnCode: zalopay.CallbackCodeSuccess, ReturnMessage: "success"}
		}
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to mark booking paid")
		return CallbackResult{ReturnCode: zalopay.CallbackCodeRetry, ReturnMessage: "internal error"}
	}

	s.writeAudit(amountAudit)
	s.writeAudit(models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceSystem).
		SetBooking(booking.ID).
		SetAppTransID(data.AppTransID))

	if err := s.details.SyncStatus(booking.ID, booking.BookingType, models.BookingStatusConfirmed); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Error("Failed to mirror confirmation onto booking detail")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"app_trans_id": data.AppTransID,
		"zp_trans_id":  zpTransID,
	}).Info("Booking paid and confirmed")

	s.bus.NotifyUser(ctx, booking.UserID, notify.Event{
		Type:      notify.EventBookingPaid,
		BookingID: booking.ID,
		Message:   "Payment received, your booking is confirmed",
	})
	s.emails.Publish(ctx, queue.EmailJob{
		To:       booking.OwnerEmail,
		ToName:   booking.OwnerName,
		Template: queue.TemplatePaymentReceived,
		Subject:  "Payment received",
		Data: map[string]interface{}{
			"booking_id": booking.ID,
			"amount":     booking.TotalPrice,
		},
	})

	return CallbackResult{ReturnCode: zalopay.CallbackCodeSuccess, ReturnMessage: "success"}
}

// QueryStatus asks the gateway for the order status directly. It is the
// fallback when a callback was lost: a paid answer settles the booking the
// same way a callback would.
func (s *PaymentService) QueryStatus(ctx context.Context, userID string, isAdmin bool, bookingID string) (*models.Booking, error) {
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
	if booking.AppTransID == nil {
		return nil, apperr.InvalidState("no payment order exists for this booking")
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return booking, nil
	}

	s.writeAudit(models.NewPaymentAudit(models.PaymentEventStatusCheckRequest, models.PaymentSourceBackend).
		SetBooking(bookingID).
		SetAppTransID(*booking.AppTransID))

	resp, err := s.gateway.QueryOrder(ctx, *booking.AppTransID)
	if err != nil {
		return nil, apperr.Upstream("payment gateway unreachable", err)
	}

	s.writeAudit(models.NewPaymentAudit(models.PaymentEventStatusCheckResponse, models.PaymentSourceZaloPayAPI).
		SetBooking(bookingID).
		SetAppTransID(*booking.AppTransID).
		SetResponsePayload(map[string]interface{}{
			"return_code": resp.ReturnCode,
			"amount":      resp.Amount,
			"zp_trans_id": resp.ZPTransID,
		}))

	if !resp.Paid() {
		return booking, nil
	}

	zpTransID := strconv.FormatInt(resp.ZPTransID, 10)
	now := time.Now()
	if err := s.bookings.MarkPaid(booking.ID, zpTransID, now); err != nil {
		if !errors.Is(err, database.ErrStaleStatus) {
			return nil, apperr.Internal("failed to mark booking paid", err)
		}
		// the booking left pending while the gateway settled (cancelled,
		// or a callback won the race); report the stored state, not the
		// settlement we could not apply
		current, readErr := s.bookings.GetByID(booking.ID)
		if readErr != nil {
			s.logger.WithError(readErr).WithField("booking_id", booking.ID).
				Warn("Failed to reload booking after stale settlement")
			return booking, nil
		}
		return current, nil
	}

	if err := s.details.SyncStatus(booking.ID, booking.BookingType, models.BookingStatusConfirmed); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Error("Failed to mirror confirmation onto booking detail")
	}
	s.bus.NotifyUser(ctx, booking.UserID, notify.Event{
		Type:      notify.EventBookingPaid,
		BookingID: booking.ID,
		Message:   "Payment received, your booking is confirmed",
	})

	booking.PaymentStatus = models.PaymentStatusPaid
	booking.Status = models.BookingStatusConfirmed
	booking.ZPTransID = &zpTransID
	booking.PaidAt = &now
	return booking, nil
}

// QueryStatusByAppTransID resolves a gateway order reference to its booking
// and reconciles it the same way QueryStatus does
func (s *PaymentService) QueryStatusByAppTransID(ctx context.Context, userID string, isAdmin bool, appTransID string) (*models.Booking, error) {
	booking, err := s.bookings.GetByAppTransID(appTransID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("payment order not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}
	if !isAdmin && booking.UserID != userID {
		return nil, apperr.NotFound("payment order not found")
	}
	return s.QueryStatus(ctx, userID, isAdmin, booking.ID)
}

// writeAudit appends to the audit trail; audit failures are logged, never
// propagated
func (s *PaymentService) writeAudit(audit *models.PaymentAudit) {
	if err := s.audits.Create(audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).
			Error("Failed to write payment audit entry")
	}
}
