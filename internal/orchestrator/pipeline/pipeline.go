// Package pipeline wires the six pipeline stages (C4-C9) into the two
// orchestrators the Canary Router picks between: the SLM Orchestrator (C10)
// and the Legacy Orchestrator (C11).
package pipeline

import (
	"context"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/broker"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/extractor"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/manifest"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/planner"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/policyengine"
)

// SoftBudget is the total decide() latency target (spec §5: "sub-1.5s soft
// latency budget"). Overage degrades telemetry, it never aborts the call.
const SoftBudget = 1500 * time.Millisecond

// Deps bundles the stage implementations an orchestrator sequences. Both
// the SLM and Legacy orchestrators share everything from the Policy Engine
// onward; only Extractor/Planner differ (LLM-backed vs. nil-client
// deterministic-only).
type Deps struct {
	Extractor *extractor.Extractor
	Planner   *planner.Planner
	Policy    *policyengine.Engine
	Manifest  *manifest.Cache
	Broker    *broker.Broker
	// Budget overrides SoftBudget (PIPELINE_TOTAL_BUDGET_MS, spec §6). Zero
	// keeps the SoftBudget default.
	Budget time.Duration
}

// softBudget returns d.Budget if set, otherwise the package default.
func (d Deps) softBudget() time.Duration {
	if d.Budget > 0 {
		return d.Budget
	}
	return SoftBudget
}

// mergeSlots layers extractor-produced slots over the caller-supplied
// conversation state, extractor winning on overlap (spec §4.4: "the
// extractor's own turn always wins for slots it actually populated").
func mergeSlots(prev map[string]string, extracted map[string]string) map[string]string {
	merged := make(map[string]string, len(prev)+len(extracted))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range extracted {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

// manifestNameSet builds the lookup set the Planner uses to decide whether
// a deterministic plan's tool is actually available before it even reaches
// the Policy Engine.
func manifestNameSet(entries []domain.ManifestEntry) map[string]bool {
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name] = true
	}
	return names
}

// buildPlannedCalls pairs each Policy-Engine-sanitised call with its
// manifest entry and idempotency key so the Tool Broker has everything it
// needs without re-deriving policy.
func buildPlannedCalls(ctx context.Context, resolver policyengine.Resolver, workspaceID string, calls []domain.ToolCall, idempotencyKeys []string) []broker.PlannedCall {
	planned := make([]broker.PlannedCall, 0, len(calls))
	for i, call := range calls {
		entry, found, err := resolver.Lookup(ctx, workspaceID, call.Tool)
		if err != nil || !found {
			// The Policy Engine already validated this tool exists; a miss
			// here means the manifest changed between Sanitize and now.
			// Skip rather than execute against unknown policy.
			continue
		}
		var key string
		if i < len(idempotencyKeys) {
			key = idempotencyKeys[i]
		}
		planned = append(planned, broker.PlannedCall{ToolCall: call, Entry: entry, IdempotencyKey: key})
	}
	return planned
}

// toExecutedCalls truncates to domain.MaxPlanLength, matching the Tool
// Broker's own output shape guarantee.
func toExecutedCalls(calls []domain.ExecutedCall) []domain.ExecutedCall {
	if len(calls) > domain.MaxPlanLength {
		return calls[:domain.MaxPlanLength]
	}
	return calls
}
