// Package manifestsource implements manifest.Source, fetching each
// workspace's tool manifest from the collaborator that owns tool
// registration (spec §4.3).
package manifestsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// HTTPSource fetches workspace manifests via GET baseURL/workspaces/{id}/manifest.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource builds an HTTPSource backed by baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{baseURL: baseURL, httpClient: &http.Client{Timeout: 3 * time.Second}}
}

// Fetch implements manifest.Source. A 404 (workspace has no manifest
// registered yet) is treated as an empty manifest, not an error, per spec
// §4.3: "If a workspace has no manifest, treat as empty."
func (s *HTTPSource) Fetch(ctx context.Context, workspaceID string) ([]domain.ManifestEntry, error) {
	endpoint, err := url.JoinPath(s.baseURL, "workspaces", workspaceID, "manifest")
	if err != nil {
		return nil, fmt.Errorf("build manifest url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest for workspace %s: %w", workspaceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []domain.ManifestEntry{}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch manifest for workspace %s: status %d", workspaceID, resp.StatusCode)
	}

	var entries []domain.ManifestEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode manifest for workspace %s: %w", workspaceID, err)
	}
	if entries == nil {
		entries = []domain.ManifestEntry{}
	}
	return entries, nil
}
