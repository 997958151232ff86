package handlers

import (
	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	evalSvc *services.EvaluationService
	// defaults fill run context fields a request leaves empty
	defaults domain.RunContext
}

func New(evalSvc *services.EvaluationService, defaults domain.RunContext) *Handler {
	return &Handler{
		evalSvc:  evalSvc,
		defaults: defaults,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/promotions", h.CreatePromotion)
}
