package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"model-promoter/internal/adapters/secondary/kubejobs"
	"model-promoter/internal/adapters/secondary/objectstore"
	"model-promoter/internal/adapters/secondary/postgres"
	"model-promoter/internal/adapters/secondary/prometheus"
	"model-promoter/internal/adapters/secondary/registryapi"
	"model-promoter/internal/config"
	"model-promoter/internal/core/ports/output"
	"model-promoter/internal/core/services"
)

// buildService selects the adapters named in cfg and wires them into an
// EvaluationService.
func buildService(ctx context.Context, cfg *config.Config) (*services.EvaluationService, func(), error) {
	cleanup := func() {}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		var err error
		pool, err = openPool(ctx, cfg.Database)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = pool.Close
	}

	fail := func(err error) (*services.EvaluationService, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	var tracker ports.ExperimentTracker
	switch cfg.Tracking.Backend {
	case config.BackendPostgres:
		tracker = postgres.NewRunRepository(pool)
	case config.BackendKubernetes:
		t, err := kubejobs.NewJobTracker(&cfg.Kubernetes)
		if err != nil {
			return fail(fmt.Errorf("init kubernetes tracker: %w", err))
		}
		tracker = t
	default:
		return fail(fmt.Errorf("unknown tracking backend %q", cfg.Tracking.Backend))
	}

	metrics, err := newMetricsSource(cfg, pool)
	if err != nil {
		return fail(err)
	}

	var registry ports.ModelRegistry
	switch cfg.Registry.Backend {
	case config.BackendPostgres:
		registry = postgres.NewModelRepository(pool)
	case config.BackendAPI:
		registry = registryapi.NewModelRegistry(&cfg.RegistryAPI)
	default:
		return fail(fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend))
	}

	var artifacts ports.ArtifactStore
	if cfg.ObjectStore.Enabled {
		store, err := objectstore.NewArtifactStore(&cfg.ObjectStore)
		if err != nil {
			return fail(fmt.Errorf("init object store: %w", err))
		}
		artifacts = store
		log.WithField("bucket", cfg.ObjectStore.Bucket).Info("artifact upload enabled")
	}

	policy, err := services.NewPolicy(cfg.Promotion.Policy, cfg.Promotion.Metric)
	if err != nil {
		return fail(err)
	}

	log.WithFields(log.Fields{
		"tracking": cfg.Tracking.Backend,
		"metrics":  cfg.Metrics.Backend,
		"registry": cfg.Registry.Backend,
		"policy":   policy.Name(),
	}).Debug("adapters wired")

	svc := services.NewEvaluationService(tracker, metrics, registry, artifacts, policy, services.EvaluationOptions{
		ArtifactPath:       cfg.Promotion.ArtifactPath,
		VerifyArtifactPath: cfg.Promotion.VerifyArtifactPath,
		SearchPageSize:     cfg.Promotion.SearchPageSize,
		MaxScannedRuns:     cfg.Promotion.MaxScannedRuns,
	})
	return svc, cleanup, nil
}

func newMetricsSource(cfg *config.Config, pool *pgxpool.Pool) (ports.MetricsSource, error) {
	switch cfg.Metrics.Backend {
	case config.BackendPostgres:
		return postgres.NewMetricRepository(pool), nil
	case config.BackendPrometheus:
		promCfg := cfg.Prometheus
		promCfg.Metrics = withMetric(promCfg.Metrics, cfg.Promotion.Metric)
		return prometheus.NewMetricsSource(&promCfg), nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.Metrics.Backend)
	}
}

// withMetric appends the policy's comparison metric so it is always queried.
func withMetric(names []string, metric string) []string {
	if metric == "" {
		return names
	}
	for _, n := range names {
		if n == metric {
			return names
		}
	}
	out := make([]string, 0, len(names)+1)
	out = append(out, names...)
	return append(out, metric)
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(db.MaxOpenConns)
	poolCfg.MinConns = int32(db.MaxIdleConns)
	poolCfg.MaxConnLifetime = db.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	log.Debug("database connection established")
	return pool, nil
}
