package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

const (
	defaultSearchPageSize = 50
	defaultMaxScannedRuns = 1000
)

type EvaluationOptions struct {
	ArtifactPath string
	// VerifyArtifactPath checks that ArtifactPath exists locally before registering.
	VerifyArtifactPath bool
	SearchPageSize     int
	MaxScannedRuns     int
}

// EvaluationService compares the latest completed training run against the
// registry and registers it when the policy promotes it.
type EvaluationService struct {
	tracker   ports.ExperimentTracker
	metrics   ports.MetricsSource
	registry  ports.ModelRegistry
	artifacts ports.ArtifactStore
	policy    PromotionPolicy
	opts      EvaluationOptions
}

// NewEvaluationService wires the service. artifacts may be nil, in which case
// only the local artifact path is recorded on the registered model.
func NewEvaluationService(
	tracker ports.ExperimentTracker,
	metrics ports.MetricsSource,
	registry ports.ModelRegistry,
	artifacts ports.ArtifactStore,
	policy PromotionPolicy,
	opts EvaluationOptions,
) *EvaluationService {
	if policy == nil {
		policy = AlwaysPromote{}
	}
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = domain.DefaultArtifactPath
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = defaultSearchPageSize
	}
	if opts.MaxScannedRuns <= 0 {
		opts.MaxScannedRuns = defaultMaxScannedRuns
	}
	return &EvaluationService{
		tracker:   tracker,
		metrics:   metrics,
		registry:  registry,
		artifacts: artifacts,
		policy:    policy,
		opts:      opts,
	}
}

type EvaluateRequest struct {
	RunContext domain.RunContext
	BuildID    string
	ModelName  string
}

// Evaluate runs the full promotion flow. Errors from the platform are
// returned unchanged apart from wrapping; nothing is retried.
func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluateRequest) (*domain.PromotionResult, error) {
	modelName := req.ModelName
	if modelName == "" {
		modelName = domain.DefaultModelName
	}

	current, err := s.ResolveRun(ctx, req.RunContext)
	if err != nil {
		return nil, err
	}

	candidate, err := s.FindLastCompletedRun(ctx, current.ExperimentName)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"run_id":     candidate.ID,
		"experiment": candidate.ExperimentName,
	}).Info("new run found")

	models, err := s.ListModels(ctx, req.RunContext.Workspace)
	if err != nil {
		return nil, err
	}

	decision, production, err := s.Decide(ctx, candidate, models)
	if err != nil {
		return nil, err
	}

	result := &domain.PromotionResult{
		CandidateRun:    candidate,
		ProductionModel: production,
		Decision:        decision,
	}
	if !decision.Promote {
		log.WithField("reason", decision.Reason).Info("new model not promoted")
		return result, nil
	}

	registered, err := s.Register(ctx, req.RunContext.Workspace, modelName, req.BuildID, candidate)
	if err != nil {
		return nil, err
	}
	result.Registered = registered
	return result, nil
}

// ResolveRun loads the run the evaluation executes under.
func (s *EvaluationService) ResolveRun(ctx context.Context, rc domain.RunContext) (*domain.Run, error) {
	if strings.TrimSpace(rc.RunID) == "" {
		return nil, domain.ErrNoRunContext
	}

	run, err := s.tracker.GetRun(ctx, rc.RunID)
	if err != nil {
		return nil, fmt.Errorf("resolve run %s: %w", rc.RunID, err)
	}
	if run.ExperimentName == "" {
		run.ExperimentName = rc.ExperimentName
	}
	if run.ExperimentName == "" {
		return nil, fmt.Errorf("resolve run %s: %w", rc.RunID, domain.ErrNoRunContext)
	}
	return run, nil
}

// FindLastCompletedRun scans the experiment history newest first, child runs
// included, and returns the first run whose status is exactly Completed.
// The scan stops at the end of history or after MaxScannedRuns runs.
func (s *EvaluationService) FindLastCompletedRun(ctx context.Context, experiment string) (*domain.Run, error) {
	scanned := 0
	for scanned < s.opts.MaxScannedRuns {
		limit := s.opts.SearchPageSize
		if remaining := s.opts.MaxScannedRuns - scanned; remaining < limit {
			limit = remaining
		}

		runs, err := s.tracker.ListRuns(ctx, ports.RunListFilter{
			ExperimentName:  experiment,
			IncludeChildren: true,
			Limit:           limit,
			Offset:          scanned,
		})
		if err != nil {
			return nil, fmt.Errorf("list runs of %s: %w", experiment, err)
		}

		for _, run := range runs {
			if run.IsCompleted() {
				return run, nil
			}
		}

		scanned += len(runs)
		if len(runs) < limit {
			break
		}
	}

	return nil, fmt.Errorf("%w: experiment %q, %d runs scanned", domain.ErrRunHistoryExhausted, experiment, scanned)
}

func (s *EvaluationService) ListModels(ctx context.Context, workspace string) ([]*domain.Model, error) {
	models, err := s.registry.List(ctx, workspace)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// Decide applies the policy. The production model is the most recently
// registered one; it is nil when the registry is empty.
func (s *EvaluationService) Decide(ctx context.Context, candidate *domain.Run, models []*domain.Model) (domain.PromotionDecision, *domain.Model, error) {
	production := domain.LatestModel(models)
	if production == nil {
		log.Info("This is the first model to be trained, thus nothing to evaluate for now")
		return domain.PromotionDecision{
			Promote: true,
			Reason:  "first model",
			Policy:  s.policy.Name(),
		}, nil, nil
	}

	var candidateMetrics, productionMetrics domain.Metrics
	if s.policy.NeedsMetrics() {
		var err error
		candidateMetrics, err = s.runMetrics(ctx, candidate.ID)
		if err != nil {
			return domain.PromotionDecision{}, nil, err
		}
		productionMetrics, err = s.runMetrics(ctx, production.RunID)
		if err != nil {
			return domain.PromotionDecision{}, nil, err
		}
	}

	decision := s.policy.Decide(candidateMetrics, productionMetrics)
	if decision.CandidateValue != nil || decision.ProductionValue != nil {
		log.Infof("Current Production model acc: %s, New trained model acc: %s",
			formatMetric(decision.ProductionValue), formatMetric(decision.CandidateValue))
	}
	return decision, production, nil
}

// Register records the run's exported artifacts as a new model version.
func (s *EvaluationService) Register(ctx context.Context, workspace, modelName, buildID string, run *domain.Run) (*domain.Model, error) {
	if strings.TrimSpace(modelName) == "" {
		return nil, domain.ErrInvalidModelName
	}

	if s.opts.VerifyArtifactPath {
		if _, err := os.Stat(s.opts.ArtifactPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrArtifactPathMissing, s.opts.ArtifactPath)
			}
			return nil, fmt.Errorf("stat artifact path: %w", err)
		}
	}

	var uri string
	if s.artifacts != nil {
		var err error
		uri, err = s.artifacts.Upload(ctx, s.opts.ArtifactPath, path.Join(workspace, modelName, run.ID))
		if err != nil {
			return nil, fmt.Errorf("upload artifacts: %w", err)
		}
	}

	model, err := s.registry.Register(ctx, domain.RegisterModelRequest{
		Workspace:    workspace,
		Name:         modelName,
		RunID:        run.ID,
		ArtifactPath: s.opts.ArtifactPath,
		URI:          uri,
		Properties:   domain.BuildProperties(buildID),
	})
	if err != nil {
		return nil, fmt.Errorf("register model %s: %w", modelName, err)
	}

	log.WithFields(log.Fields{
		"model":    model.Name,
		"version":  model.Version,
		"run_id":   run.ID,
		"build_id": buildID,
	}).Info("registered new model")
	return model, nil
}

func (s *EvaluationService) runMetrics(ctx context.Context, runID string) (domain.Metrics, error) {
	if runID == "" || s.metrics == nil {
		return domain.Metrics{}, nil
	}
	m, err := s.metrics.GetMetrics(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrMetricNotFound) || errors.Is(err, domain.ErrRunNotFound) {
			return domain.Metrics{}, nil
		}
		return nil, fmt.Errorf("get metrics of run %s: %w", runID, err)
	}
	return m, nil
}

func formatMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
