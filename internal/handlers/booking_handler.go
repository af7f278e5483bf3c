package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/middleware"
	"github.com/wandertrip/booking-backend/internal/models"
	"github.com/wandertrip/booking-backend/internal/services"
)

// BookingHandler handles booking lifecycle operations
type BookingHandler struct {
	bookings *services.BookingService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// CreateBooking creates a new booking
// @Summary Create a new booking
// @Description Create a tour, flight or activity booking with server-side pricing
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.BookingWithDetail "Booking created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), userCtx.UserID.String(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"booking": booking,
	})
}

// GetMyBookings lists the caller's own bookings
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Success 200 {object} map[string]interface{} "Bookings"
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookings, err := h.bookings.ListForUser(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// GetBooking returns a single booking with its type-specific detail
// @Summary Get booking by ID
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingWithDetail "Booking"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID := c.Param("id")

	booking, err := h.bookings.GetByID(userCtx.UserID.String(), userCtx.IsAdmin(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// UpdateBooking updates participant counts on a pending booking and reprices it
// @Summary Update booking detail
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.UpdateDetailRequest true "Fields to update"
// @Success 200 {object} models.BookingWithDetail "Updated booking"
// @Failure 409 {object} map[string]interface{} "Booking not editable"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [put]
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID := c.Param("id")

	var req models.UpdateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookings.UpdateDetail(c.Request.Context(), userCtx.UserID.String(), userCtx.IsAdmin(), bookingID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking updated successfully",
		"booking": booking,
	})
}

// DeleteBooking deletes an unpaid pending booking
// @Summary Delete booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 409 {object} map[string]interface{} "Booking not deletable"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [delete]
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID := c.Param("id")

	if err := h.bookings.Delete(userCtx.UserID.String(), userCtx.IsAdmin(), bookingID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted successfully"})
}

// ListBookings lists all bookings, optionally filtered by status (admin only)
// @Summary List all bookings
// @Tags Admin Bookings
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{} "Bookings"
// @Security BearerAuth
// @Router /api/v1/admin/bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	status := c.Query("status")

	bookings, err := h.bookings.List(status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

type updateStatusRequest struct {
	Status models.BookingStatus `json:"status" binding:"required"`
}

// UpdateBookingStatus moves a booking through its lifecycle (admin only)
// @Summary Update booking status
// @Description Transition a booking to a new status. Illegal transitions are rejected.
// @Tags Admin Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body updateStatusRequest true "Target status"
// @Success 200 {object} models.Booking "Updated booking"
// @Failure 409 {object} map[string]interface{} "Illegal transition"
// @Security BearerAuth
// @Router /api/v1/admin/bookings/{id}/status [put]
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	bookingID := c.Param("id")

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookings.Transition(c.Request.Context(), bookingID, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking status updated successfully",
		"booking": booking,
	})
}
