package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/remote"
	"service-availability-backend/internal/session"
)

// writeError maps session and slot errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	if !writeKnownError(c, err) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// writeRemoteError is writeError for calls that reach the marketplace. Anything
// unrecognised is reported as a bad gateway under action.
func writeRemoteError(c *gin.Context, action string, err error) {
	if writeKnownError(c, err) {
		return
	}
	_ = c.Error(err)

	var apiErr *remote.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
	case errors.Is(err, remote.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": action, "details": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": action, "details": err.Error()})
	}
}

func writeKnownError(c *gin.Context, err error) bool {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, avail.ErrDateLocked), errors.Is(err, session.ErrSaveInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, avail.ErrUnknownField), errors.Is(err, session.ErrNoImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		return false
	}
	return true
}
