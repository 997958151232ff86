package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

type metricRepo struct {
	pool *pgxpool.Pool
}

func NewMetricRepository(pool *pgxpool.Pool) ports.MetricsSource {
	return &metricRepo{pool: pool}
}

func (r *metricRepo) GetMetrics(ctx context.Context, runID string) (domain.Metrics, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, value FROM run_metric WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run metrics: %w", err)
	}
	defer rows.Close()

	metrics := domain.Metrics{}
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan run metric: %w", err)
		}
		metrics[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run metrics: %w", err)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: run %s", domain.ErrMetricNotFound, runID)
	}
	return metrics, nil
}
