package handlers

import (
	"errors"
	"net/http"

	"model-promoter/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrRunHistoryExhausted):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrModelNameConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrNoRunContext),
		errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrUnknownPolicy):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrArtifactPathMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrRegistryUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
