package domain

import "time"

type RunStatus string

const (
	RunStatusQueued    RunStatus = "Queued"
	RunStatusRunning   RunStatus = "Running"
	RunStatusCompleted RunStatus = "Completed"
	RunStatusFailed    RunStatus = "Failed"
	RunStatusCanceled  RunStatus = "Canceled"
)

// Run is one execution of a training experiment as seen by the tracker.
type Run struct {
	ID             string            `json:"id"`
	ExperimentName string            `json:"experiment_name"`
	ParentID       string            `json:"parent_id,omitempty"`
	Status         RunStatus         `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	Properties     map[string]string `json:"properties,omitempty"`
}

func (r *Run) IsCompleted() bool {
	return r != nil && r.Status == RunStatusCompleted
}

// RunContext identifies the run the evaluation executes under.
type RunContext struct {
	RunID          string `json:"run_id"`
	ExperimentName string `json:"experiment_name"`
	Workspace      string `json:"workspace"`
}

// Metrics maps a metric name to its last logged value.
type Metrics map[string]float64

func (m Metrics) Get(name string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[name]
	return v, ok
}
