package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

type runRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepository returns an ExperimentTracker backed by the experiment_run table.
func NewRunRepository(pool *pgxpool.Pool) ports.ExperimentTracker {
	return &runRepo{pool: pool}
}

func (r *runRepo) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT id, experiment_name, COALESCE(parent_id, ''), status, created_at, properties
		FROM experiment_run
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *runRepo) ListRuns(ctx context.Context, filter ports.RunListFilter) ([]*domain.Run, error) {
	// Child runs inherit the experiment through their parent chain.
	query := `
		WITH RECURSIVE runs AS (
			SELECT id, experiment_name, parent_id, status, created_at, properties
			FROM experiment_run
			WHERE experiment_name = $1 AND parent_id IS NULL
			UNION ALL
			SELECT c.id, c.experiment_name, c.parent_id, c.status, c.created_at, c.properties
			FROM experiment_run c
			JOIN runs p ON c.parent_id = p.id
			WHERE $2::boolean
		)
		SELECT id, experiment_name, COALESCE(parent_id, ''), status, created_at, properties
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, filter.ExperimentName, filter.IncludeChildren, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run        domain.Run
		status     string
		properties []byte
	)
	if err := row.Scan(&run.ID, &run.ExperimentName, &run.ParentID, &status, &run.CreatedAt, &properties); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if err := unmarshalProperties(properties, &run.Properties); err != nil {
		return nil, err
	}
	return &run, nil
}

func unmarshalProperties(raw []byte, dst *map[string]string) error {
	*dst = map[string]string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal properties: %w", err)
	}
	return nil
}
