package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/broker"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/extractor"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/manifest"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/planner"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/policyengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManifestSource struct {
	entries []domain.ManifestEntry
}

func (f fakeManifestSource) Fetch(ctx context.Context, workspaceID string) ([]domain.ManifestEntry, error) {
	return f.entries, nil
}

type fakeTransport struct {
	fn func(tool string, args map[string]any) (map[string]any, error)
}

func (f fakeTransport) Call(ctx context.Context, tool string, args map[string]any, timeout time.Duration, idempotencyKey string) (map[string]any, error) {
	return f.fn(tool, args)
}

func testManifest() *manifest.Cache {
	return manifest.New(fakeManifestSource{entries: []domain.ManifestEntry{
		{Name: "get_business_hours", Policy: domain.ToolPolicy{MaxRPSPerWorkspace: 100}},
		{Name: "get_service_packages", Policy: domain.ToolPolicy{MaxRPSPerWorkspace: 100}},
		{Name: "book_appointment", Policy: domain.ToolPolicy{Write: true, RequiresWorkspace: true, MaxRPSPerWorkspace: 100},
			ArgumentShape: []domain.ArgumentSpec{{Name: "workspace_id", Type: "string"}}},
	}}, time.Minute)
}

func newTestDeps(transportFn func(tool string, args map[string]any) (map[string]any, error)) Deps {
	m := testManifest()
	return Deps{
		Extractor: extractor.New(nil),
		Planner:   planner.New(nil),
		Policy:    policyengine.New(m),
		Manifest:  m,
		Broker:    broker.New(fakeTransport{fn: transportFn}, time.Minute),
	}
}

func TestSLMOrchestrator_GreetingProducesNonEmptyReplyNoTools(t *testing.T) {
	deps := newTestDeps(func(tool string, args map[string]any) (map[string]any, error) {
		t.Fatalf("unexpected tool call %s", tool)
		return nil, nil
	})
	o := NewSLM(deps)

	resp := o.Decide(context.Background(), domain.Snapshot{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		UserMessage:    domain.UserMessage{Text: "hola"},
		State:          domain.ConversationState{Slots: map[string]string{}},
	})

	assert.NotEmpty(t, resp.Assistant.Text)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, domain.RouteSLM, resp.Telemetry.Route)
	assert.Equal(t, domain.IntentGreeting, resp.Telemetry.Intent)
}

func TestSLMOrchestrator_HoursQueryExecutesToolAndPatchesNothing(t *testing.T) {
	deps := newTestDeps(func(tool string, args map[string]any) (map[string]any, error) {
		return map[string]any{"days": []any{"Lun 9-18"}}, nil
	})
	o := NewSLM(deps)

	resp := o.Decide(context.Background(), domain.Snapshot{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		UserMessage:    domain.UserMessage{Text: "cual es el horario?"},
		State:          domain.ConversationState{Slots: map[string]string{}},
	})

	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, resp.ToolCalls[0].Observation.OK)
	assert.Contains(t, resp.Assistant.Text, "9-18")
}

func TestSLMOrchestrator_StageMSAndTotalMSAreStamped(t *testing.T) {
	deps := newTestDeps(func(tool string, args map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	o := NewSLM(deps)

	resp := o.Decide(context.Background(), domain.Snapshot{
		WorkspaceID: "ws-1", ConversationID: "conv-1",
		UserMessage: domain.UserMessage{Text: "hola"},
		State:       domain.ConversationState{Slots: map[string]string{}},
	})

	assert.GreaterOrEqual(t, resp.Telemetry.TotalMS, int64(0))
	assert.False(t, resp.Telemetry.BudgetExceeded)
}

func TestLegacyOrchestrator_ClassifiesViaRuleTableAndSharesBrokerStages(t *testing.T) {
	deps := newTestDeps(func(tool string, args map[string]any) (map[string]any, error) {
		return map[string]any{"days": []any{"Lun 9-18"}}, nil
	})
	o := NewLegacy(deps)

	resp := o.Decide(context.Background(), domain.Snapshot{
		WorkspaceID: "ws-1", ConversationID: "conv-1",
		UserMessage: domain.UserMessage{Text: "a que hora abren?"},
		State:       domain.ConversationState{Slots: map[string]string{}},
	})

	assert.Equal(t, domain.RouteLegacy, resp.Telemetry.Route)
	assert.Equal(t, domain.IntentInfoHours, resp.Telemetry.Intent)
	require.Len(t, resp.ToolCalls, 1)
}

func TestLegacyOrchestrator_UnknownTextFallsBackToChitchat(t *testing.T) {
	deps := newTestDeps(func(tool string, args map[string]any) (map[string]any, error) {
		t.Fatalf("unexpected tool call %s", tool)
		return nil, nil
	})
	o := NewLegacy(deps)

	resp := o.Decide(context.Background(), domain.Snapshot{
		WorkspaceID: "ws-1", ConversationID: "conv-1",
		UserMessage: domain.UserMessage{Text: "che que tal todo bien"},
		State:       domain.ConversationState{Slots: map[string]string{}},
	})

	assert.Equal(t, domain.IntentChitchat, resp.Telemetry.Intent)
	assert.NotEmpty(t, resp.Assistant.Text)
}
