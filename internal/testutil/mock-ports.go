package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

// MockExperimentTracker is a mock of ExperimentTracker.
type MockExperimentTracker struct {
	mock.Mock
}

func (m *MockExperimentTracker) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockExperimentTracker) ListRuns(ctx context.Context, filter ports.RunListFilter) ([]*domain.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Run), args.Error(1)
}

// MockMetricsSource is a mock of MetricsSource.
type MockMetricsSource struct {
	mock.Mock
}

func (m *MockMetricsSource) GetMetrics(ctx context.Context, runID string) (domain.Metrics, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Metrics), args.Error(1)
}

// MockModelRegistry is a mock of ModelRegistry.
type MockModelRegistry struct {
	mock.Mock
}

func (m *MockModelRegistry) List(ctx context.Context, workspace string) ([]*domain.Model, error) {
	args := m.Called(ctx, workspace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Model), args.Error(1)
}

func (m *MockModelRegistry) Register(ctx context.Context, req domain.RegisterModelRequest) (*domain.Model, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Model), args.Error(1)
}

// MockArtifactStore is a mock of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	args := m.Called(ctx, localPath, prefix)
	return args.String(0), args.Error(1)
}
