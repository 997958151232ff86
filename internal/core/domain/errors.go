package domain

import "errors"

// ============================================================================
// Run Context / History Errors
// ============================================================================

var (
	ErrNoRunContext        = errors.New("no run context: run ID is required")
	ErrRunNotFound         = errors.New("run not found")
	ErrRunHistoryExhausted = errors.New("no completed run found in experiment history")
)

// ============================================================================
// Registry Errors
// ============================================================================

var (
	ErrRegistryUnavailable = errors.New("model registry unavailable")
	ErrInvalidModelName    = errors.New("model name is required")
	ErrModelNameConflict   = errors.New("model version already exists")
	ErrArtifactPathMissing = errors.New("model artifact path does not exist")
)

// ============================================================================
// Promotion Errors
// ============================================================================

var (
	ErrMetricNotFound = errors.New("metric not found")
	ErrUnknownPolicy  = errors.New("unknown promotion policy")
)
