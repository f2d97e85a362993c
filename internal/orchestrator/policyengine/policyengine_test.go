package policyengine

import (
	"context"
	"testing"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	entries map[string]domain.ManifestEntry
}

func (f *fakeResolver) Lookup(ctx context.Context, workspaceID, tool string) (domain.ManifestEntry, bool, error) {
	e, ok := f.entries[tool]
	return e, ok, nil
}

func TestSanitize_UnknownToolIsDroppedWithAdvisory(t *testing.T) {
	e := New(&fakeResolver{entries: map[string]domain.ManifestEntry{}})

	calls, _, advisories := e.Sanitize(context.Background(), "ws-1", "conv-1", []domain.ToolCall{
		{Tool: "not_registered", Args: map[string]any{}},
	}, nil)

	assert.Empty(t, calls)
	require.Len(t, advisories, 1)
	assert.Equal(t, AdvisoryUnknownTool, advisories[0].Kind)
}

func TestSanitize_InjectsWorkspaceIDWhenRequired(t *testing.T) {
	e := New(&fakeResolver{entries: map[string]domain.ManifestEntry{
		"get_business_hours": {
			Name:          "get_business_hours",
			ArgumentShape: []domain.ArgumentSpec{{Name: "workspace_id", Type: "string"}},
			Policy:        domain.ToolPolicy{RequiresWorkspace: true, MaxRPSPerWorkspace: 100},
		},
	}})

	calls, _, advisories := e.Sanitize(context.Background(), "ws-1", "conv-1", []domain.ToolCall{
		{Tool: "get_business_hours", Args: map[string]any{}},
	}, nil)

	require.Empty(t, advisories)
	require.Len(t, calls, 1)
	assert.Equal(t, "ws-1", calls[0].Args["workspace_id"])
}

func TestSanitize_MissingRequiredArgDropsCallAsAdvisory(t *testing.T) {
	e := New(&fakeResolver{entries: map[string]domain.ManifestEntry{
		"book_appointment": {
			Name:          "book_appointment",
			ArgumentShape: []domain.ArgumentSpec{{Name: "client_email", Type: "string"}},
			Policy:        domain.ToolPolicy{MaxRPSPerWorkspace: 100},
		},
	}})

	calls, _, advisories := e.Sanitize(context.Background(), "ws-1", "conv-1", []domain.ToolCall{
		{Tool: "book_appointment", Args: map[string]any{}},
	}, nil)

	assert.Empty(t, calls)
	require.Len(t, advisories, 1)
	assert.Equal(t, AdvisoryMissingArgs, advisories[0].Kind)
}

func TestSanitize_WriteToolGetsIdempotencyKey(t *testing.T) {
	e := New(&fakeResolver{entries: map[string]domain.ManifestEntry{
		"book_appointment": {
			Name:   "book_appointment",
			Policy: domain.ToolPolicy{Write: true, MaxRPSPerWorkspace: 100},
		},
	}})

	_, keys, advisories := e.Sanitize(context.Background(), "ws-1", "conv-1", []domain.ToolCall{
		{Tool: "book_appointment", Args: map[string]any{"preferred_date": "2026-07-31"}},
	}, nil)

	require.Empty(t, advisories)
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0])
}

func TestIdempotencyKey_IsStableAcrossArgOrdering(t *testing.T) {
	k1 := idempotencyKey("ws-1", "conv-1", "book_appointment", map[string]any{"a": "1", "b": "2"})
	k2 := idempotencyKey("ws-1", "conv-1", "book_appointment", map[string]any{"b": "2", "a": "1"})
	assert.Equal(t, k1, k2)
}

func TestSanitize_RateLimitExceededDropsOnlyOffendingCall(t *testing.T) {
	e := New(&fakeResolver{entries: map[string]domain.ManifestEntry{
		"get_business_hours": {
			Name:   "get_business_hours",
			Policy: domain.ToolPolicy{MaxRPSPerWorkspace: 1},
		},
	}})

	plan := []domain.ToolCall{
		{Tool: "get_business_hours", Args: map[string]any{}},
		{Tool: "get_business_hours", Args: map[string]any{}},
		{Tool: "get_business_hours", Args: map[string]any{}},
	}
	_, _, advisories := e.Sanitize(context.Background(), "ws-1", "conv-1", plan, nil)

	found := false
	for _, a := range advisories {
		if a.Kind == AdvisoryRateLimited {
			found = true
		}
	}
	assert.True(t, found)
}
