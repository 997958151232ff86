package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	ports "model-promoter/internal/core/ports/output"
)

// metricsSource reads run metrics that training jobs push to Prometheus
// (via a Pushgateway) labelled with run_id.
type metricsSource struct {
	baseURL string
	client  *http.Client
	metrics []string
}

// NewMetricsSource creates a Prometheus-backed MetricsSource.
func NewMetricsSource(cfg *config.PrometheusConfig) ports.MetricsSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	metrics := cfg.Metrics
	if len(metrics) == 0 {
		metrics = []string{domain.DefaultComparisonMetric}
	}

	return &metricsSource{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		metrics: metrics,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Prometheus API response structures
type promResponse struct {
	Status string   `json:"status"`
	Error  string   `json:"error,omitempty"`
	Data   promData `json:"data"`
}

type promData struct {
	ResultType string       `json:"resultType"`
	Result     []promResult `json:"result"`
}

type promResult struct {
	Metric map[string]string `json:"metric"`
	Value  []interface{}     `json:"value"` // [timestamp, value]
}

func (c *metricsSource) GetMetrics(ctx context.Context, runID string) (domain.Metrics, error) {
	out := domain.Metrics{}
	for _, name := range c.metrics {
		promQL := fmt.Sprintf(`last_over_time(%s{run_id=%q}[30d])`, name, runID)
		val, ok, err := c.instantQuery(ctx, promQL)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
		if !ok {
			log.WithFields(log.Fields{"metric": name, "run_id": runID}).Debug("metric not found in prometheus")
			continue
		}
		out[name] = val
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: run %s", domain.ErrMetricNotFound, runID)
	}
	return out, nil
}

// instantQuery returns the first sample of the query result.
func (c *metricsSource) instantQuery(ctx context.Context, promQL string) (float64, bool, error) {
	params := url.Values{}
	params.Set("query", promQL)

	reqURL := fmt.Sprintf("%s/api/v1/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var promResp promResponse
	if err := json.NewDecoder(resp.Body).Decode(&promResp); err != nil {
		return 0, false, fmt.Errorf("decode prometheus response (status %d): %w", resp.StatusCode, err)
	}
	if promResp.Status != "success" {
		return 0, false, fmt.Errorf("prometheus query failed: %s %s", promResp.Status, promResp.Error)
	}

	for _, r := range promResp.Data.Result {
		if len(r.Value) < 2 {
			continue
		}
		valStr, _ := r.Value[1].(string)
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			continue
		}
		return val, true, nil
	}
	return 0, false, nil
}
