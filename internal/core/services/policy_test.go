package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-promoter/internal/core/domain"
)

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("", "")
	require.NoError(t, err)
	assert.Equal(t, PolicyAlways, p.Name())

	p, err = NewPolicy(" Compare ", "")
	require.NoError(t, err)
	assert.Equal(t, PolicyCompare, p.Name())
	assert.Equal(t, domain.DefaultComparisonMetric, p.(MetricComparison).Metric)

	_, err = NewPolicy("canary", "")
	assert.ErrorIs(t, err, domain.ErrUnknownPolicy)
}

func TestAlwaysPromote_IgnoresMetrics(t *testing.T) {
	p := AlwaysPromote{}
	assert.False(t, p.NeedsMetrics())

	worse := domain.Metrics{"val_accuracy": 0.1}
	better := domain.Metrics{"val_accuracy": 0.9}
	assert.True(t, p.Decide(worse, better).Promote)
	assert.True(t, p.Decide(nil, nil).Promote)
}

func TestMetricComparison_Decide(t *testing.T) {
	p := NewMetricComparison("val_accuracy")

	tests := []struct {
		name       string
		candidate  domain.Metrics
		production domain.Metrics
		promote    bool
	}{
		{"candidate better", domain.Metrics{"val_accuracy": 0.91}, domain.Metrics{"val_accuracy": 0.90}, true},
		{"candidate equal", domain.Metrics{"val_accuracy": 0.90}, domain.Metrics{"val_accuracy": 0.90}, false},
		{"candidate worse", domain.Metrics{"val_accuracy": 0.80}, domain.Metrics{"val_accuracy": 0.90}, false},
		{"no production metric", domain.Metrics{"val_accuracy": 0.50}, domain.Metrics{"loss": 0.2}, true},
		{"no candidate metric", domain.Metrics{"loss": 0.1}, domain.Metrics{"val_accuracy": 0.90}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.candidate, tt.production)
			assert.Equal(t, tt.promote, d.Promote)
			assert.Equal(t, PolicyCompare, d.Policy)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestMetricComparison_RecordsValues(t *testing.T) {
	d := NewMetricComparison("").Decide(
		domain.Metrics{"val_accuracy": 0.95},
		domain.Metrics{"val_accuracy": 0.90},
	)
	require.NotNil(t, d.CandidateValue)
	require.NotNil(t, d.ProductionValue)
	assert.Equal(t, 0.95, *d.CandidateValue)
	assert.Equal(t, 0.90, *d.ProductionValue)
}
