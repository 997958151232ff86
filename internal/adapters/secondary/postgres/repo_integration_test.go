//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/ports/output"
)

const schemaDDL = `
CREATE TABLE experiment_run (
	id              text PRIMARY KEY,
	experiment_name text NOT NULL,
	parent_id       text NULL,
	status          text NOT NULL,
	created_at      timestamptz NOT NULL,
	properties      jsonb
);
CREATE TABLE run_metric (
	run_id text NOT NULL,
	name   text NOT NULL,
	value  double precision NOT NULL,
	PRIMARY KEY (run_id, name)
);
CREATE TABLE registered_model_version (
	id            uuid PRIMARY KEY,
	workspace     text NOT NULL,
	name          text NOT NULL,
	version       int NOT NULL,
	run_id        text NULL,
	artifact_path text NOT NULL,
	uri           text NULL,
	properties    jsonb,
	created_at    timestamptz NOT NULL,
	UNIQUE (workspace, name, version)
);
`

// newTestPool connects to MODEL_PROMOTER_TEST_DSN with every table in a
// throwaway schema.
func newTestPool(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("MODEL_PROMOTER_TEST_DSN")
	if dsn == "" {
		t.Skip("MODEL_PROMOTER_TEST_DSN not set")
	}
	ctx := context.Background()
	schema := "promoter_" + uuid.NewString()[:8]

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schemaDDL)
	require.NoError(t, err)
	return pool
}

func insertRun(t *testing.T, pool *pgxpool.Pool, id, experiment, parent string, status domain.RunStatus, created time.Time) {
	var parentID interface{}
	if parent != "" {
		parentID = parent
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO experiment_run (id, experiment_name, parent_id, status, created_at, properties)
		VALUES ($1, $2, $3, $4, $5, '{}')
	`, id, experiment, parentID, string(status), created)
	require.NoError(t, err)
}

func TestRunRepository_ListRuns(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRunRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	insertRun(t, pool, "train-1", "exp", "", domain.RunStatusCompleted, now.Add(-3*time.Hour))
	insertRun(t, pool, "pipeline-2", "exp", "", domain.RunStatusFailed, now.Add(-2*time.Hour))
	// child steps may carry no experiment of their own
	insertRun(t, pool, "pipeline-2-train", "", "pipeline-2", domain.RunStatusCompleted, now.Add(-90*time.Minute))
	insertRun(t, pool, "evaluate", "exp", "", domain.RunStatusRunning, now.Add(-time.Minute))
	insertRun(t, pool, "other", "other-exp", "", domain.RunStatusCompleted, now)

	runs, err := repo.ListRuns(ctx, ports.RunListFilter{ExperimentName: "exp", IncludeChildren: true, Limit: 10})
	require.NoError(t, err)
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"evaluate", "pipeline-2-train", "pipeline-2", "train-1"}, ids)
	assert.Equal(t, "pipeline-2", runs[1].ParentID)

	top, err := repo.ListRuns(ctx, ports.RunListFilter{ExperimentName: "exp", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, top, 3)

	page, err := repo.ListRuns(ctx, ports.RunListFilter{ExperimentName: "exp", IncludeChildren: true, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "pipeline-2", page[0].ID)

	_, err = repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestMetricRepository_GetMetrics(t *testing.T) {
	pool := newTestPool(t)
	repo := NewMetricRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO run_metric (run_id, name, value) VALUES ('train-1', 'val_accuracy', 0.91)`)
	require.NoError(t, err)

	m, err := repo.GetMetrics(ctx, "train-1")
	require.NoError(t, err)
	assert.Equal(t, 0.91, m["val_accuracy"])

	_, err = repo.GetMetrics(ctx, "train-2")
	assert.ErrorIs(t, err, domain.ErrMetricNotFound)
}

func TestModelRepository_RegisterVersions(t *testing.T) {
	pool := newTestPool(t)
	repo := NewModelRepository(pool)
	ctx := context.Background()

	req := domain.RegisterModelRequest{
		Workspace: "ws", Name: "demo", RunID: "train-1",
		ArtifactPath: domain.DefaultArtifactPath, Properties: domain.BuildProperties("4321"),
	}
	first, err := repo.Register(ctx, req)
	require.NoError(t, err)
	second, err := repo.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)

	models, err := repo.List(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, map[string]string{"build_id": "4321", "run_type": "train"}, models[0].Properties)
	assert.Equal(t, "train-1", models[0].RunID)
}
