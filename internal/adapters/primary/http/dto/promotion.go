package dto

import (
	"time"

	"github.com/google/uuid"

	"model-promoter/internal/core/domain"
)

type CreatePromotionRequest struct {
	BuildID    string `json:"build_id"`
	ModelName  string `json:"model_name"`
	RunID      string `json:"run_id"`
	Experiment string `json:"experiment"`
	Workspace  string `json:"workspace"`
}

type RunResponse struct {
	ID             string `json:"id"`
	ExperimentName string `json:"experiment_name"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

type ModelResponse struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Version      int               `json:"version"`
	RunID        string            `json:"run_id,omitempty"`
	ArtifactPath string            `json:"artifact_path"`
	URI          string            `json:"uri,omitempty"`
	Properties   map[string]string `json:"properties"`
	CreatedAt    string            `json:"created_at"`
}

type PromotionResponse struct {
	Promoted        bool                     `json:"promoted"`
	Decision        domain.PromotionDecision `json:"decision"`
	CandidateRun    *RunResponse             `json:"candidate_run"`
	ProductionModel *ModelResponse           `json:"production_model,omitempty"`
	Registered      *ModelResponse           `json:"registered,omitempty"`
}

func ToPromotionResponse(r *domain.PromotionResult) PromotionResponse {
	resp := PromotionResponse{
		Promoted:        r.Decision.Promote,
		Decision:        r.Decision,
		ProductionModel: toModelResponse(r.ProductionModel),
		Registered:      toModelResponse(r.Registered),
	}
	if r.CandidateRun != nil {
		resp.CandidateRun = &RunResponse{
			ID:             r.CandidateRun.ID,
			ExperimentName: r.CandidateRun.ExperimentName,
			Status:         string(r.CandidateRun.Status),
			CreatedAt:      formatTime(r.CandidateRun.CreatedAt),
		}
	}
	return resp
}

func toModelResponse(m *domain.Model) *ModelResponse {
	if m == nil {
		return nil
	}
	return &ModelResponse{
		ID:           m.ID,
		Name:         m.Name,
		Version:      m.Version,
		RunID:        m.RunID,
		ArtifactPath: m.ArtifactPath,
		URI:          m.URI,
		Properties:   m.Properties,
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
