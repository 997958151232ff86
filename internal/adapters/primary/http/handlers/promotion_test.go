package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/services"
	"model-promoter/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupPromotionRouter(defaults domain.RunContext) (*testutil.MockExperimentTracker, *testutil.MockModelRegistry, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	tracker := new(testutil.MockExperimentTracker)
	registry := new(testutil.MockModelRegistry)

	svc := services.NewEvaluationService(tracker, nil, registry, nil, services.AlwaysPromote{}, services.EvaluationOptions{})
	h := New(svc, defaults)

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	return tracker, registry, r
}

func postPromotion(r *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/v1/promotions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePromotion(t *testing.T) {
	tracker, registry, r := setupPromotionRouter(domain.RunContext{Workspace: "ws"})

	tracker.On("GetRun", mock.Anything, "eval-1").
		Return(&domain.Run{ID: "eval-1", ExperimentName: "exp", Status: domain.RunStatusRunning}, nil)
	tracker.On("ListRuns", mock.Anything, mock.Anything).Return([]*domain.Run{
		{ID: "train-1", ExperimentName: "exp", Status: domain.RunStatusCompleted, CreatedAt: time.Now()},
	}, nil)
	registry.On("List", mock.Anything, "ws").Return([]*domain.Model{}, nil)
	registry.On("Register", mock.Anything, mock.MatchedBy(func(req domain.RegisterModelRequest) bool {
		return req.Name == "demo" && req.Properties["build_id"] == "4321" && req.Workspace == "ws"
	})).Return(&domain.Model{ID: uuid.New(), Name: "demo", Version: 1, RunID: "train-1",
		ArtifactPath: "./outputs/exports", Properties: domain.BuildProperties("4321")}, nil)

	w := postPromotion(r, map[string]string{"build_id": "4321", "model_name": "demo", "run_id": "eval-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["promoted"])
	registered := resp["registered"].(map[string]interface{})
	assert.Equal(t, "demo", registered["name"])
	assert.Equal(t, "train-1", resp["candidate_run"].(map[string]interface{})["id"])
}

func TestCreatePromotion_NoRunContext(t *testing.T) {
	_, _, r := setupPromotionRouter(domain.RunContext{})

	w := postPromotion(r, map[string]string{"model_name": "demo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePromotion_HistoryExhausted(t *testing.T) {
	tracker, _, r := setupPromotionRouter(domain.RunContext{RunID: "eval-1", ExperimentName: "exp"})

	tracker.On("GetRun", mock.Anything, "eval-1").
		Return(&domain.Run{ID: "eval-1", ExperimentName: "exp", Status: domain.RunStatusRunning}, nil)
	tracker.On("ListRuns", mock.Anything, mock.Anything).Return([]*domain.Run{
		{ID: "eval-1", Status: domain.RunStatusRunning},
	}, nil)

	w := postPromotion(r, map[string]string{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePromotion_RegistryUnavailable(t *testing.T) {
	tracker, registry, r := setupPromotionRouter(domain.RunContext{RunID: "eval-1"})

	tracker.On("GetRun", mock.Anything, "eval-1").
		Return(&domain.Run{ID: "eval-1", ExperimentName: "exp", Status: domain.RunStatusRunning}, nil)
	tracker.On("ListRuns", mock.Anything, mock.Anything).Return([]*domain.Run{
		{ID: "train-1", Status: domain.RunStatusCompleted},
	}, nil)
	registry.On("List", mock.Anything, "").Return(nil, domain.ErrRegistryUnavailable)

	w := postPromotion(r, map[string]string{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreatePromotion_BadJSON(t *testing.T) {
	_, _, r := setupPromotionRouter(domain.RunContext{})

	req, _ := http.NewRequest("POST", "/api/v1/promotions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
