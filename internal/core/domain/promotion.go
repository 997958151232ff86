package domain

const DefaultComparisonMetric = "val_accuracy"

type PromotionDecision struct {
	Promote         bool     `json:"promote"`
	Reason          string   `json:"reason"`
	Policy          string   `json:"policy"`
	CandidateValue  *float64 `json:"candidate_value,omitempty"`
	ProductionValue *float64 `json:"production_value,omitempty"`
}

// PromotionResult is the outcome of a single evaluation.
type PromotionResult struct {
	CandidateRun    *Run              `json:"candidate_run"`
	ProductionModel *Model            `json:"production_model,omitempty"`
	Decision        PromotionDecision `json:"decision"`
	Registered      *Model            `json:"registered,omitempty"`
}
