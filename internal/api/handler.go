package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"gate-access-backend/internal/gate"
	"gate-access-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *gate.Service
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(svc *gate.Service, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		svc:     svc,
		store:   s,
		webpush: webpushOptions,
	}
}

// respondError maps the service's typed errors onto HTTP statuses. Anything
// unrecognized is a storage-level failure: logged, surfaced as retryable.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gate.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gate.ErrEntityNotFound), errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateRequest), errors.Is(err, store.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gate.ErrInvalidApprover):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("storage failure on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "transient storage failure",
			"retryable": true,
		})
	}
}
