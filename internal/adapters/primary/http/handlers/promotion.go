package handlers

import (
	"net/http"

	"model-promoter/internal/adapters/primary/http/dto"
	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) CreatePromotion(c *gin.Context) {
	var req dto.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rc := domain.RunContext{
		RunID:          firstNonEmpty(req.RunID, h.defaults.RunID),
		ExperimentName: firstNonEmpty(req.Experiment, h.defaults.ExperimentName),
		Workspace:      firstNonEmpty(req.Workspace, h.defaults.Workspace),
	}

	result, err := h.evalSvc.Evaluate(c.Request.Context(), services.EvaluateRequest{
		RunContext: rc,
		BuildID:    req.BuildID,
		ModelName:  req.ModelName,
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"build_id": req.BuildID,
			"model":    req.ModelName,
			"run_id":   rc.RunID,
		}).Error("promotion failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPromotionResponse(result))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
