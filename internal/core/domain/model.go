package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultModelName    = "azure_service_classifier"
	DefaultArtifactPath = "./outputs/exports"

	PropertyBuildID = "build_id"
	PropertyRunType = "run_type"
	RunTypeTrain    = "train"
)

// Model is a single registered version of a named model.
type Model struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Version      int               `json:"version"`
	Workspace    string            `json:"workspace"`
	RunID        string            `json:"run_id,omitempty"`
	ArtifactPath string            `json:"artifact_path"`
	URI          string            `json:"uri,omitempty"`
	Properties   map[string]string `json:"properties"`
	CreatedAt    time.Time         `json:"created_at"`
}

type RegisterModelRequest struct {
	Workspace    string
	Name         string
	RunID        string
	ArtifactPath string
	URI          string
	Properties   map[string]string
}

// BuildProperties returns the properties recorded on every promoted model.
// The build_id key is always present, empty when no build id was given.
func BuildProperties(buildID string) map[string]string {
	return map[string]string{
		PropertyBuildID: buildID,
		PropertyRunType: RunTypeTrain,
	}
}

// LatestModel returns the most recently created model, which is treated as
// the one in production. The first model wins on equal timestamps.
func LatestModel(models []*Model) *Model {
	var latest *Model
	for _, m := range models {
		if m == nil {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	return latest
}
