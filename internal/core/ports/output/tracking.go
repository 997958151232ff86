package ports

import (
	"context"

	"model-promoter/internal/core/domain"
)

// RunListFilter selects a page of an experiment's run history.
// Implementations return runs newest first.
type RunListFilter struct {
	ExperimentName  string
	IncludeChildren bool
	Limit           int
	Offset          int
}

// ExperimentTracker is the experiment-tracking side of the ML platform.
type ExperimentTracker interface {
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter RunListFilter) ([]*domain.Run, error)
}

// MetricsSource returns the metrics a run logged, or ErrMetricNotFound when
// it logged none.
type MetricsSource interface {
	GetMetrics(ctx context.Context, runID string) (domain.Metrics, error)
}
