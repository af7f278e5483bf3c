package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/middleware"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/services"
)

// CancellationHandler handles the cancellation request workflow
type CancellationHandler struct {
	cancellations *services.CancellationService
	logger        *logrus.Logger
}

// NewCancellationHandler creates a new CancellationHandler
func NewCancellationHandler(cancellations *services.CancellationService, logger *logrus.Logger) *CancellationHandler {
	return &CancellationHandler{
		cancellations: cancellations,
		logger:        logger,
	}
}

// SubmitCancellationRequest submits a cancellation request for a booking
// @Summary Request booking cancellation
// @Description Submit a cancellation request for review by an admin
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param request body models.CreateCancellationRequest true "Booking and reason"
// @Success 201 {object} models.CancellationRequest "Request submitted"
// @Failure 409 {object} map[string]interface{} "Duplicate or booking not cancellable"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests [post]
func (h *CancellationHandler) SubmitCancellationRequest(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	request, err := h.cancellations.Submit(c.Request.Context(), userCtx.UserID.String(), req.BookingID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Cancellation request submitted successfully",
		"request": request,
	})
}

// GetPendingCancellationRequest returns the open request for a booking, if any
// @Summary Get pending cancellation request for a booking
// @Tags Cancellations
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} models.CancellationRequest "Pending request"
// @Failure 404 {object} map[string]interface{} "No pending request"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests/booking/{bookingId} [get]
func (h *CancellationHandler) GetPendingCancellationRequest(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID := c.Param("bookingId")

	request, err := h.cancellations.GetPendingForBooking(userCtx.UserID.String(), userCtx.IsAdmin(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// GetMyCancellationRequests lists the caller's own cancellation requests
// @Summary List my cancellation requests
// @Tags Cancellations
// @Produce json
// @Success 200 {object} map[string]interface{} "Requests"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests/user [get]
func (h *CancellationHandler) GetMyCancellationRequests(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	requests, err := h.cancellations.ListForUser(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// ListCancellationRequests lists all cancellation requests (admin only)
// @Summary List cancellation requests
// @Tags Admin Cancellations
// @Produce json
// @Param status query string false "Filter by status"
// @Param booking_type query string false "Filter by booking type"
// @Success 200 {object} map[string]interface{} "Requests"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests [get]
func (h *CancellationHandler) ListCancellationRequests(c *gin.Context) {
	status := c.Query("status")
	bookingType := c.Query("booking_type")

	requests, err := h.cancellations.List(status, bookingType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetPendingCount returns the number of unprocessed requests (admin only)
// @Summary Count pending cancellation requests
// @Tags Admin Cancellations
// @Produce json
// @Success 200 {object} map[string]interface{} "Pending count"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests/count [get]
func (h *CancellationHandler) GetPendingCount(c *gin.Context) {
	count, err := h.cancellations.CountPending()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ApproveCancellationRequest approves a request and cancels the booking (admin only)
// @Summary Approve cancellation request
// @Tags Admin Cancellations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body models.ProcessCancellationRequest false "Optional admin note"
// @Success 200 {object} models.CancellationRequest "Approved request"
// @Failure 409 {object} map[string]interface{} "Already processed"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests/{id}/approve [put]
func (h *CancellationHandler) ApproveCancellationRequest(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	requestID := c.Param("id")

	var req models.ProcessCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	request, err := h.cancellations.Approve(c.Request.Context(), userCtx.UserID.String(), requestID, req.AdminNote)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cancellation request approved",
		"request": request,
	})
}

// RejectCancellationRequest rejects a request, leaving the booking untouched (admin only)
// @Summary Reject cancellation request
// @Description Reject a pending request. A note explaining the decision is mandatory.
// @Tags Admin Cancellations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body models.ProcessCancellationRequest true "Admin note"
// @Success 200 {object} models.CancellationRequest "Rejected request"
// @Failure 409 {object} map[string]interface{} "Already processed"
// @Security BearerAuth
// @Router /api/v1/cancellationrequests/{id}/reject [put]
func (h *CancellationHandler) RejectCancellationRequest(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	requestID := c.Param("id")

	var req models.ProcessCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	request, err := h.cancellations.Reject(c.Request.Context(), userCtx.UserID.String(), requestID, req.AdminNote)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cancellation request rejected",
		"request": request,
	})
}
