package registryapi

import "github.com/google/uuid"

// Wire types of the model-registry-service API, trimmed to the fields used here.

type createModelRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ModelType   string            `json:"model_type"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type modelResponse struct {
	ID        uuid.UUID         `json:"id"`
	CreatedAt string            `json:"created_at"`
	ProjectID uuid.UUID         `json:"project_id"`
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels"`
}

type listModelsResponse struct {
	Items      []modelResponse `json:"items"`
	Total      int             `json:"total"`
	PageSize   int             `json:"page_size"`
	NextOffset int             `json:"next_offset"`
}

type createVersionRequest struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	ArtifactType          string            `json:"artifact_type"`
	ModelFramework        string            `json:"model_framework"`
	ModelFrameworkVersion string            `json:"model_framework_version"`
	URI                   string            `json:"uri"`
	Labels                map[string]string `json:"labels"`
}

type versionResponse struct {
	ID                uuid.UUID         `json:"id"`
	CreatedAt         string            `json:"created_at"`
	RegisteredModelID uuid.UUID         `json:"registered_model_id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	URI               string            `json:"uri"`
	Labels            map[string]string `json:"labels"`
}

type listVersionsResponse struct {
	Items      []versionResponse `json:"items"`
	Total      int               `json:"total"`
	PageSize   int               `json:"page_size"`
	NextOffset int               `json:"next_offset"`
}
