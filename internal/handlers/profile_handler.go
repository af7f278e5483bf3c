package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/middleware"
)

// ProfileHandler serves the authenticated user's own record
type ProfileHandler struct {
	users  *database.UserRepository
	logger *logrus.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(users *database.UserRepository, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{
		users:  users,
		logger: logger,
	}
}

// GetProfile returns the caller's user record
// @Summary Get my profile
// @Tags Profile
// @Produce json
// @Success 200 {object} models.User "User profile"
// @Failure 404 {object} map[string]interface{} "User not found"
// @Security BearerAuth
// @Router /api/v1/me [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.users.GetByID(userCtx.UserID.String())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
