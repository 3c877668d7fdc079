package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps the service error taxonomy to HTTP statuses.
// Every failure body carries a single human-readable `error` string;
// unrecognized errors are logged internally and surface as a generic 500.
func respondServiceError(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	switch {
	case errors.As(err, &cooldown):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           err.Error(),
			"nextAttemptDate": cooldown.NextAttemptDate,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientAnchors):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrTradingClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
