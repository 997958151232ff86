package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

type modelRepo struct {
	pool *pgxpool.Pool
}

// NewModelRepository returns a ModelRegistry backed by registered_model_version.
func NewModelRepository(pool *pgxpool.Pool) ports.ModelRegistry {
	return &modelRepo{pool: pool}
}

func (r *modelRepo) List(ctx context.Context, workspace string) ([]*domain.Model, error) {
	query := `
		SELECT id, name, version, workspace, COALESCE(run_id, ''), artifact_path,
			   COALESCE(uri, ''), properties, created_at
		FROM registered_model_version
		WHERE workspace = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: list models: %v", domain.ErrRegistryUnavailable, err)
	}
	defer rows.Close()

	models := []*domain.Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model rows: %w", err)
	}
	return models, nil
}

func (r *modelRepo) Register(ctx context.Context, req domain.RegisterModelRequest) (*domain.Model, error) {
	propsJSON, err := json.Marshal(req.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrRegistryUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM registered_model_version
		WHERE workspace = $1 AND name = $2
	`, req.Workspace, req.Name).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("next model version: %w", err)
	}

	model := &domain.Model{
		ID:           uuid.New(),
		Name:         req.Name,
		Version:      version,
		Workspace:    req.Workspace,
		RunID:        req.RunID,
		ArtifactPath: req.ArtifactPath,
		URI:          req.URI,
		Properties:   req.Properties,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO registered_model_version
			(id, name, version, workspace, run_id, artifact_path, uri, properties, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6,NULLIF($7, ''),$8,$9)
	`,
		model.ID, model.Name, model.Version, model.Workspace, model.RunID,
		model.ArtifactPath, model.URI, propsJSON, model.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrModelNameConflict
		}
		return nil, fmt.Errorf("create model version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit model version: %w", err)
	}
	return model, nil
}

func scanModel(row pgx.Row) (*domain.Model, error) {
	var (
		m          domain.Model
		properties []byte
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Version, &m.Workspace, &m.RunID,
		&m.ArtifactPath, &m.URI, &properties, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalProperties(properties, &m.Properties); err != nil {
		return nil, err
	}
	return &m, nil
}
