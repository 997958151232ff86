package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "always", cfg.Promotion.Policy)
	assert.Equal(t, "./outputs/exports", cfg.Promotion.ArtifactPath)
	assert.Equal(t, BackendPostgres, cfg.Tracking.Backend)
	assert.Equal(t, 30*time.Second, cfg.RegistryAPI.Timeout)
	assert.Equal(t, []string{"val_accuracy"}, cfg.Prometheus.Metrics)
	assert.True(t, cfg.NeedsDatabase())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("RUN_ID", "run-42")
	t.Setenv("TRACKING_BACKEND", "Kubernetes")
	t.Setenv("REGISTRY_BACKEND", "api")
	t.Setenv("METRICS_BACKEND", "prometheus")
	t.Setenv("PROMETHEUS_METRICS", "val_accuracy, val_loss")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "run-42", cfg.Run.RunID)
	assert.Equal(t, BackendKubernetes, cfg.Tracking.Backend)
	assert.Equal(t, []string{"val_accuracy", "val_loss"}, cfg.Prometheus.Metrics)
	assert.False(t, cfg.NeedsDatabase())
}

func TestLoad_OverridesFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("PROMOTION_POLICY", "compare")
	v.Set("REGISTRY_API_TIMEOUT", "bogus")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "compare", cfg.Promotion.Policy)
	assert.Equal(t, 30*time.Second, cfg.RegistryAPI.Timeout)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "mlflow")

	_, err := Load(nil)
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "mlops", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/mlops?sslmode=disable", d.DSN())
}
