// Package collaborator implements the Tool Broker's outbound Transport:
// HTTP calls to the external collaborator that owns each tool's real
// side effects (spec §8), plus the one tool this repo answers itself,
// lookup_services_info, served from the embedded RAG store.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/broker"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/rag"
)

// ErrTransient is returned for retryable collaborator failures (network
// errors, 5xx, timeouts); broker.classify maps it onto ErrorKindTransient.
var ErrTransient = fmt.Errorf("collaborator: transient failure")

// HTTPTransport calls the workspace's tool collaborator over HTTP, one
// JSON POST per tool invocation, and answers lookup_services_info locally
// from an embedded RAG store rather than forwarding it (spec §1: the
// orchestrator only ever issues read queries through the lookup tool,
// never ingests documents itself).
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	rag        *rag.Store
}

// NewHTTPTransport builds a Transport that posts tool calls to
// baseURL + "/tools/" + tool, and answers the lookup_services_info tool
// from store.
func NewHTTPTransport(baseURL string, store *rag.Store) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		rag:        store,
	}
}

// lookupServicesInfoTool is the supplemented read-only RAG tool (spec's
// DOMAIN STACK: "the lookup_services_info manifest tool ... queries an
// embedded vector store through this client").
const lookupServicesInfoTool = "lookup_services_info"

// Call implements broker.Transport.
func (t *HTTPTransport) Call(ctx context.Context, tool string, args map[string]any, timeout time.Duration, idempotencyKey string) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if tool == lookupServicesInfoTool {
		return t.lookupServicesInfo(callCtx, args)
	}

	return t.callRemote(callCtx, tool, args, idempotencyKey)
}

func (t *HTTPTransport) lookupServicesInfo(ctx context.Context, args map[string]any) (map[string]any, error) {
	workspaceID, _ := args["workspace_id"].(string)
	query, _ := args["query"].(string)

	results, err := t.rag.Query(ctx, workspaceID, query, 3)
	if err != nil {
		return nil, fmt.Errorf("%w: rag query: %v", ErrTransient, err)
	}

	hits := make([]map[string]any, 0, len(results))
	for _, r := range results {
		hits = append(hits, map[string]any{
			"id":      r.ID,
			"content": r.Content,
			"score":   r.Score,
		})
	}
	return map[string]any{"results": hits}, nil
}

func (t *HTTPTransport) callRemote(ctx context.Context, tool string, args map[string]any, idempotencyKey string) (map[string]any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	endpoint, err := url.JoinPath(t.baseURL, "tools", tool)
	if err != nil {
		return nil, fmt.Errorf("build tool url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		discard, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &broker.ToolError{Kind: domain.ErrorKindTransient, Message: fmt.Sprintf("status %d", resp.StatusCode), Cause: fmt.Errorf("%s", discard)}
	}
	if resp.StatusCode >= 400 {
		discard, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &broker.ToolError{Kind: domain.ErrorKindPermanent, Message: fmt.Sprintf("collaborator rejected tool %s: status %d", tool, resp.StatusCode), Cause: fmt.Errorf("%s", discard)}
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
