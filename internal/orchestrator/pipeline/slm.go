package pipeline

import (
	"context"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/llm"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/nlg"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/reducer"
)

// SLMOrchestrator sequences the full C4-C9 pipeline with LLM-backed
// Extractor and Planner stages (C10).
type SLMOrchestrator struct {
	deps Deps
}

// NewSLM builds the SLM Orchestrator.
func NewSLM(deps Deps) *SLMOrchestrator {
	return &SLMOrchestrator{deps: deps}
}

// Decide runs one full decide() call. It never returns an error: every
// stage already degrades internally (Extractor falls back to heuristics,
// Planner falls back to its deterministic table, manifest fetch failures
// are treated as an empty manifest), so the orchestrator's only job is to
// sequence stages and stamp telemetry, including a budget_exceeded flag
// when the soft 1.5s target is missed (spec §5: degrade, never abort).
func (o *SLMOrchestrator) Decide(ctx context.Context, snap domain.Snapshot) domain.DecisionResponse {
	start := time.Now()
	var stageMS domain.StageMS

	extractCtx, cancel := llm.WithStageBudget(ctx, 250*time.Millisecond)
	t0 := time.Now()
	extracted := o.deps.Extractor.Extract(extractCtx, snap.UserMessage, snap.State.Slots, snap.Context.Vertical)
	cancel()
	stageMS.Extractor = time.Since(t0).Milliseconds()

	slots := mergeSlots(snap.State.Slots, extracted.Slots)

	manifestEntries, _ := o.deps.Manifest.Tools(ctx, snap.WorkspaceID)
	names := manifestNameSet(manifestEntries)

	planCtx, cancel := llm.WithStageBudget(ctx, 200*time.Millisecond)
	t0 = time.Now()
	plan := o.deps.Planner.Plan(planCtx, extracted.Intent, slots, names)
	cancel()
	stageMS.Planner = time.Since(t0).Milliseconds()

	t0 = time.Now()
	sanitized, idemKeys, _ := o.deps.Policy.Sanitize(ctx, snap.WorkspaceID, snap.ConversationID, plan.ToolCalls, slots)
	stageMS.Policy = time.Since(t0).Milliseconds()

	t0 = time.Now()
	plannedCalls := buildPlannedCalls(ctx, o.deps.Manifest, snap.WorkspaceID, sanitized, idemKeys)
	executed := o.deps.Broker.Execute(ctx, snap.WorkspaceID, plannedCalls)
	stageMS.Broker = time.Since(t0).Milliseconds()

	observations := make([]domain.ToolObservation, len(executed))
	for i, c := range executed {
		observations[i] = c.Observation
	}

	t0 = time.Now()
	patch := reducer.Reduce(extracted.Intent, snap.State.Slots, extracted.Slots, observations)
	stageMS.Reducer = time.Since(t0).Milliseconds()

	t0 = time.Now()
	assistant := nlg.Generate(extracted.Intent, plan.MissingSlots, observations)
	stageMS.NLG = time.Since(t0).Milliseconds()

	totalMS := time.Since(start).Milliseconds()

	return domain.DecisionResponse{
		Assistant: assistant,
		ToolCalls: toExecutedCalls(executed),
		Patch:     patch,
		Telemetry: domain.Telemetry{
			Route:          domain.RouteSLM,
			Intent:         extracted.Intent,
			Confidence:     extracted.Confidence,
			StageMS:        stageMS,
			TotalMS:        totalMS,
			BudgetExceeded: time.Duration(totalMS)*time.Millisecond > o.deps.softBudget(),
		},
	}
}
