package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/middleware"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/services"
	"github.com/wandertrip/booking-backend/pkg/zalopay"
)

// PaymentHandler handles ZaloPay order creation, callbacks and status queries
type PaymentHandler struct {
	payments *services.PaymentService
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

func callerMeta(c *gin.Context) services.CallerMeta {
	return services.CallerMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

type createOrderRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// CreatePaymentOrder creates a ZaloPay order for a pending booking. The
// amount always comes from the booking's stored total, never from the client.
// @Summary Create ZaloPay payment order
// @Description Create a gateway order and return the payment URL. Calling twice returns the same order.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body createOrderRequest true "Booking to pay"
// @Success 200 {object} map[string]interface{} "Order details"
// @Failure 409 {object} map[string]interface{} "Booking not payable"
// @Failure 502 {object} map[string]interface{} "Gateway unavailable"
// @Security BearerAuth
// @Router /api/v1/payment/zalopay/create [post]
func (h *PaymentHandler) CreatePaymentOrder(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.payments.CreateOrder(c.Request.Context(), userCtx.UserID.String(), userCtx.IsAdmin(), req.BookingID, callerMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Payment order created successfully",
		"booking_id":   booking.ID,
		"app_trans_id": booking.AppTransID,
		"order_url":    booking.OrderURL,
	})
}

// ZaloPayCallback receives the gateway's server-to-server payment notification.
// This endpoint is unauthenticated; trust comes from the HMAC on the payload.
// The response body follows the gateway's envelope contract: 1 settles the
// callback, 0 asks the gateway to retry, -1 reports a bad signature.
// @Summary ZaloPay payment callback
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body zalopay.CallbackEnvelope true "Callback envelope"
// @Success 200 {object} services.CallbackResult "Callback result"
// @Router /api/v1/payment/zalopay/callback [post]
func (h *PaymentHandler) ZaloPayCallback(c *gin.Context) {
	var env zalopay.CallbackEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		// gateway retries on 0, same as any other malformed payload
		c.JSON(http.StatusOK, services.CallbackResult{
			ReturnCode:    zalopay.CallbackCodeRetry,
			ReturnMessage: "malformed callback body",
		})
		return
	}

	result := h.payments.HandleCallback(c.Request.Context(), env, callerMeta(c))
	c.JSON(http.StatusOK, result)
}

type queryStatusRequest struct {
	AppTransID string `json:"app_trans_id" binding:"required"`
}

// QueryPaymentStatus asks the gateway for the order status by its gateway
// reference and reconciles. Covers the case where the callback was lost but
// the customer actually paid.
// @Summary Query ZaloPay order status
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body queryStatusRequest true "Gateway order reference"
// @Success 200 {object} map[string]interface{} "Payment status"
// @Security BearerAuth
// @Router /api/v1/payment/zalopay/status [post]
func (h *PaymentHandler) QueryPaymentStatus(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req queryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.payments.QueryStatusByAppTransID(c.Request.Context(), userCtx.UserID.String(), userCtx.IsAdmin(), req.AppTransID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, paymentStatusBody(booking))
}

// VerifyPayment reconciles a booking's payment by booking id
// @Summary Verify booking payment
// @Tags Payments
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} map[string]interface{} "Payment status"
// @Failure 409 {object} map[string]interface{} "No order created yet"
// @Security BearerAuth
// @Router /api/v1/payment/zalopay/verify/{bookingId} [get]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID := c.Param("bookingId")

	booking, err := h.payments.QueryStatus(c.Request.Context(), userCtx.UserID.String(), userCtx.IsAdmin(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, paymentStatusBody(booking))
}

func paymentStatusBody(booking *models.Booking) gin.H {
	return gin.H{
		"booking_id":     booking.ID,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
		"app_trans_id":   booking.AppTransID,
		"paid_at":        booking.PaidAt,
	}
}
