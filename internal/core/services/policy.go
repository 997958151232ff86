package services

import (
	"fmt"
	"strings"

	"model-promoter/internal/core/domain"
)

const (
	PolicyAlways  = "always"
	PolicyCompare = "compare"
)

// PromotionPolicy decides whether a candidate run replaces the production model.
type PromotionPolicy interface {
	Name() string
	// NeedsMetrics reports whether Decide reads the metric arguments.
	NeedsMetrics() bool
	Decide(candidate, production domain.Metrics) domain.PromotionDecision
}

// NewPolicy builds a policy by name. An empty name selects AlwaysPromote.
func NewPolicy(name, metric string) (PromotionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAlways:
		return AlwaysPromote{}, nil
	case PolicyCompare:
		return NewMetricComparison(metric), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, name)
	}
}

// AlwaysPromote promotes every candidate.
type AlwaysPromote struct{}

func (AlwaysPromote) Name() string       { return PolicyAlways }
func (AlwaysPromote) NeedsMetrics() bool { return false }

func (AlwaysPromote) Decide(_, _ domain.Metrics) domain.PromotionDecision {
	return domain.PromotionDecision{
		Promote: true,
		Reason:  "always-promote policy",
		Policy:  PolicyAlways,
	}
}

// MetricComparison promotes only when the candidate's metric is strictly
// greater than production's.
type MetricComparison struct {
	Metric string
}

func NewMetricComparison(metric string) MetricComparison {
	if metric == "" {
		metric = domain.DefaultComparisonMetric
	}
	return MetricComparison{Metric: metric}
}

func (p MetricComparison) Name() string       { return PolicyCompare }
func (p MetricComparison) NeedsMetrics() bool { return true }

func (p MetricComparison) Decide(candidate, production domain.Metrics) domain.PromotionDecision {
	decision := domain.PromotionDecision{Policy: PolicyCompare}

	newVal, ok := candidate.Get(p.Metric)
	if !ok {
		decision.Reason = fmt.Sprintf("candidate run has no %s metric", p.Metric)
		return decision
	}
	decision.CandidateValue = &newVal

	prodVal, ok := production.Get(p.Metric)
	if !ok {
		decision.Promote = true
		decision.Reason = fmt.Sprintf("production model has no %s metric", p.Metric)
		return decision
	}
	decision.ProductionValue = &prodVal

	if newVal > prodVal {
		decision.Promote = true
		decision.Reason = "new trained model performs better"
		return decision
	}
	decision.Reason = fmt.Sprintf("new %s %.4f does not exceed production %.4f", p.Metric, newVal, prodVal)
	return decision
}
