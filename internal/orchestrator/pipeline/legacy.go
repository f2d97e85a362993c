package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/nlg"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/reducer"
)

// legacyKeywordTable mirrors the Extractor's own heuristic fallback table,
// kept independent so the Legacy Orchestrator never depends on the
// LLM-capable Extractor package at all (spec §4.11: "the legacy path must
// keep working with the LLM backend fully disabled").
var legacyKeywordTable = []struct {
	intent  domain.Intent
	pattern *regexp.Regexp
}{
	{domain.IntentGreeting, regexp.MustCompile(`(?i)\b(hola|buenas|buen[oa]s dias|buenas tardes)\b`)},
	{domain.IntentCancel, regexp.MustCompile(`(?i)\b(cancelar|cancela)\b`)},
	{domain.IntentReschedule, regexp.MustCompile(`(?i)\b(reprogramar|cambiar.*(turno|reserva)|mover.*turno)\b`)},
	{domain.IntentBook, regexp.MustCompile(`(?i)\b(reservar|turno|agendar|quiero.*reserva)\b`)},
	{domain.IntentInfoPrices, regexp.MustCompile(`(?i)\b(precio|cu[aá]nto sale|cu[aá]nto cuesta|tarifa)\b`)},
	{domain.IntentInfoHours, regexp.MustCompile(`(?i)\b(horario|a qu[eé] hora|abren|cierran)\b`)},
	{domain.IntentInfoServices, regexp.MustCompile(`(?i)\b(servicios|qu[eé] hacen|qu[eé] ofrecen)\b`)},
}

// classifyLegacy is a fixed rule-table classifier, the non-LLM analogue of
// the Extractor's intent field (spec's supplemented Legacy Orchestrator:
// "fixed intent→plan rule table").
func classifyLegacy(text string) domain.Intent {
	for _, row := range legacyKeywordTable {
		if row.pattern.MatchString(text) {
			return row.intent
		}
	}
	if strings.TrimSpace(text) == "" {
		return domain.IntentOther
	}
	return domain.IntentChitchat
}

// LegacyOrchestrator is the pre-SLM rule-table pipeline (C11), kept alive as
// the Canary Router's fallback target and the kill-switch destination.
type LegacyOrchestrator struct {
	deps Deps
}

// NewLegacy builds the Legacy Orchestrator. deps.Planner must have been
// constructed with a nil LLM client so it only ever uses its deterministic
// table.
func NewLegacy(deps Deps) *LegacyOrchestrator {
	return &LegacyOrchestrator{deps: deps}
}

// Decide runs the fixed-table pipeline: rule-based intent classification,
// deterministic planning, and the same Policy Engine/Tool Broker/Reducer/NLG
// stages the SLM Orchestrator uses from C6 onward (spec's supplemented
// Legacy Orchestrator shares C6-C9 rather than re-implementing them).
func (o *LegacyOrchestrator) Decide(ctx context.Context, snap domain.Snapshot) domain.DecisionResponse {
	start := time.Now()
	var stageMS domain.StageMS

	t0 := time.Now()
	intent := classifyLegacy(snap.UserMessage.Text)
	stageMS.Extractor = time.Since(t0).Milliseconds()

	slots := snap.State.Slots

	manifestEntries, _ := o.deps.Manifest.Tools(ctx, snap.WorkspaceID)
	names := manifestNameSet(manifestEntries)

	t0 = time.Now()
	plan := o.deps.Planner.Plan(ctx, intent, slots, names)
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
	patch := reducer.Reduce(intent, snap.State.Slots, map[string]string{}, observations)
	stageMS.Reducer = time.Since(t0).Milliseconds()

	t0 = time.Now()
	assistant := nlg.Generate(intent, plan.MissingSlots, observations)
	stageMS.NLG = time.Since(t0).Milliseconds()

	totalMS := time.Since(start).Milliseconds()

	return domain.DecisionResponse{
		Assistant: assistant,
		ToolCalls: toExecutedCalls(executed),
		Patch:     patch,
		Telemetry: domain.Telemetry{
			Route:          domain.RouteLegacy,
			Intent:         intent,
			Confidence:     1,
			StageMS:        stageMS,
			TotalMS:        totalMS,
			BudgetExceeded: time.Duration(totalMS)*time.Millisecond > o.deps.softBudget(),
		},
	}
}
