package ports

import (
	"context"

	"model-promoter/internal/core/domain"
)

// ModelRegistry is the platform's versioned model store.
// Register creates a new version on every call.
type ModelRegistry interface {
	List(ctx context.Context, workspace string) ([]*domain.Model, error)
	Register(ctx context.Context, req domain.RegisterModelRequest) (*domain.Model, error)
}

// ArtifactStore uploads a local artifact directory and returns its URI.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, prefix string) (string, error)
}
