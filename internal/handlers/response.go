package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/apperr"
)

// respondError translates a service error into an HTTP response. Typed
// application errors carry their own status code and a safe message;
// anything else becomes a 500 with a generic body so internals never
// leak to clients.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindUpstream {
			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Error("Request failed")
		}
		c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message})
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
