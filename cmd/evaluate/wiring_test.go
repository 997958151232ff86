package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-promoter/internal/config"
	"model-promoter/internal/core/services"
)

// fakePrometheus serves f1 samples per run_id and nothing for other metrics.
func fakePrometheus(t *testing.T, f1 map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		for runID, val := range f1 {
			if strings.HasPrefix(q, "last_over_time(f1{") && strings.Contains(q, fmt.Sprintf("run_id=%q", runID)) {
				fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"%s"]}]}}`, val)
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewMetricsSource_PrometheusQueriesComparisonMetric(t *testing.T) {
	srv := fakePrometheus(t, map[string]string{"train-2": "0.99", "train-1": "0.10"})

	v := viper.New()
	config.SetDefaults(v)
	v.Set("METRICS_BACKEND", config.BackendPrometheus)
	v.Set("PROMETHEUS_URL", srv.URL)
	v.Set("PROMOTION_POLICY", services.PolicyCompare)
	v.Set("PROMOTION_METRIC", "f1")
	cfg, err := config.Load(v)
	require.NoError(t, err)

	src, err := newMetricsSource(cfg, nil)
	require.NoError(t, err)

	candidate, err := src.GetMetrics(context.Background(), "train-2")
	require.NoError(t, err)
	production, err := src.GetMetrics(context.Background(), "train-1")
	require.NoError(t, err)
	assert.Equal(t, 0.99, candidate["f1"])

	policy, err := services.NewPolicy(cfg.Promotion.Policy, cfg.Promotion.Metric)
	require.NoError(t, err)
	assert.True(t, policy.Decide(candidate, production).Promote)

	assert.Equal(t, []string{"val_accuracy"}, cfg.Prometheus.Metrics)
}

func TestNewMetricsSource_UnknownBackend(t *testing.T) {
	_, err := newMetricsSource(&config.Config{Metrics: config.MetricsConfig{Backend: "statsd"}}, nil)
	assert.Error(t, err)
}

func TestWithMetric(t *testing.T) {
	assert.Equal(t, []string{"val_accuracy", "f1"}, withMetric([]string{"val_accuracy"}, "f1"))
	assert.Equal(t, []string{"val_accuracy"}, withMetric([]string{"val_accuracy"}, "val_accuracy"))
	assert.Equal(t, []string{"val_accuracy"}, withMetric([]string{"val_accuracy"}, ""))
	assert.Equal(t, []string{"f1"}, withMetric(nil, "f1"))
}
