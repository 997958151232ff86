package registryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	ports "model-promoter/internal/core/ports/output"
)

const (
	apiPrefix     = "/api/v1/model-registry"
	headerProject = "Project-ID"
	pageSize      = 100

	labelRunID        = "run_id"
	labelArtifactPath = "artifact_path"
)

var errNotFound = errors.New("not found")

// client speaks the model-registry-service REST API. A workspace maps to a
// registry project.
type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	framework  string
	fwVersion  string
}

func NewModelRegistry(cfg *config.RegistryAPIConfig) ports.ModelRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/") + apiPrefix,
		token:      cfg.Token,
		framework:  cfg.Framework,
		fwVersion:  cfg.FrameworkVersion,
	}
}

// ProjectID returns the registry project for a workspace: the workspace itself
// when it is a UUID, otherwise a stable name-based UUID.
func ProjectID(workspace string) uuid.UUID {
	if id, err := uuid.Parse(workspace); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("workspace:"+workspace))
}

func (c *client) List(ctx context.Context, workspace string) ([]*domain.Model, error) {
	project := ProjectID(workspace)

	var out []*domain.Model
	for offset := 0; ; {
		var page listModelsResponse
		q := url.Values{"limit": {strconv.Itoa(pageSize)}, "offset": {strconv.Itoa(offset)}}
		if err := c.do(ctx, http.MethodGet, "/models?"+q.Encode(), project, nil, &page); err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}

		for _, m := range page.Items {
			versions, err := c.listVersions(ctx, project, m.ID)
			if err != nil {
				return nil, err
			}
			for _, v := range versions {
				out = append(out, toModel(workspace, m, v))
			}
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			break
		}
	}
	if out == nil {
		out = []*domain.Model{}
	}
	return out, nil
}

func (c *client) Register(ctx context.Context, req domain.RegisterModelRequest) (*domain.Model, error) {
	project := ProjectID(req.Workspace)

	model, err := c.getOrCreateModel(ctx, project, req.Name)
	if err != nil {
		return nil, err
	}

	existing, err := c.listVersions(ctx, project, model.ID)
	if err != nil {
		return nil, err
	}
	next := nextVersion(existing)

	labels := make(map[string]string, len(req.Properties)+2)
	for k, v := range req.Properties {
		labels[k] = v
	}
	labels[labelRunID] = req.RunID
	labels[labelArtifactPath] = req.ArtifactPath

	uri := req.URI
	if uri == "" {
		uri = "file://" + req.ArtifactPath
	}

	body := createVersionRequest{
		Name:                  fmt.Sprintf("v%d", next),
		Description:           fmt.Sprintf("registered from run %s", req.RunID),
		ArtifactType:          "model-artifact",
		ModelFramework:        c.framework,
		ModelFrameworkVersion: c.fwVersion,
		URI:                   uri,
		Labels:                labels,
	}

	var created versionResponse
	path := fmt.Sprintf("/models/%s/versions", model.ID)
	if err := c.do(ctx, http.MethodPost, path, project, body, &created); err != nil {
		return nil, fmt.Errorf("create model version: %w", err)
	}
	return toModel(req.Workspace, *model, created), nil
}

func (c *client) getOrCreateModel(ctx context.Context, project uuid.UUID, name string) (*modelResponse, error) {
	var model modelResponse
	err := c.do(ctx, http.MethodGet, "/model?"+url.Values{"name": {name}}.Encode(), project, nil, &model)
	if err == nil {
		return &model, nil
	}
	if !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("get model %s: %w", name, err)
	}

	body := createModelRequest{
		Name:        name,
		Description: "registered by model-promoter",
		ModelType:   "CUSTOM_TRAIN",
	}
	if err := c.do(ctx, http.MethodPost, "/models", project, body, &model); err != nil {
		return nil, fmt.Errorf("create model %s: %w", name, err)
	}
	log.WithField("model", name).Info("created registered model")
	return &model, nil
}

func (c *client) listVersions(ctx context.Context, project uuid.UUID, modelID uuid.UUID) ([]versionResponse, error) {
	var out []versionResponse
	for offset := 0; ; {
		var page listVersionsResponse
		q := url.Values{"limit": {strconv.Itoa(pageSize)}, "offset": {strconv.Itoa(offset)}}
		path := fmt.Sprintf("/models/%s/versions?%s", modelID, q.Encode())
		if err := c.do(ctx, http.MethodGet, path, project, nil, &page); err != nil {
			return nil, fmt.Errorf("list versions of %s: %w", modelID, err)
		}
		out = append(out, page.Items...)
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			return out, nil
		}
	}
}

func (c *client) do(ctx context.Context, method, path string, project uuid.UUID, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create registry request: %w", err)
	}
	req.Header.Set(headerProject, project.String())
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.WithFields(log.Fields{
		"method": method,
		"path":   path,
	}).Debug("calling model registry")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrModelNameConflict, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: authentication failed: %s", domain.ErrRegistryUnavailable, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrRegistryUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, msg)
	}
}

func toModel(workspace string, m modelResponse, v versionResponse) *domain.Model {
	props := make(map[string]string, len(v.Labels))
	for k, val := range v.Labels {
		if k == labelRunID || k == labelArtifactPath {
			continue
		}
		props[k] = val
	}

	created, _ := time.Parse(time.RFC3339Nano, v.CreatedAt)

	return &domain.Model{
		ID:           v.ID,
		Name:         m.Name,
		Version:      parseVersion(v.Name),
		Workspace:    workspace,
		RunID:        v.Labels[labelRunID],
		ArtifactPath: v.Labels[labelArtifactPath],
		URI:          v.URI,
		Properties:   props,
		CreatedAt:    created,
	}
}

// nextVersion is one past the highest vN name; deleted versions leave gaps.
func nextVersion(versions []versionResponse) int {
	highest := 0
	for _, v := range versions {
		if n := parseVersion(v.Name); n > highest {
			highest = n
		}
	}
	return highest + 1
}

func parseVersion(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(name), "v"))
	if err != nil {
		return 0
	}
	return n
}
