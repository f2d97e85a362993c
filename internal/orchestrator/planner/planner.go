// Package planner implements the Planner stage (C5): turning {intent, slots,
// manifest} into a bounded, schema-validated plan of tool calls.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/llm"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/schema"
)

// Budget is the stage's LLM call budget (spec §4.5: "200 ms").
const Budget = 200 * time.Millisecond

// Well-known tool names the deterministic fast path dispatches to. Any tool
// not present in the workspace manifest is dropped by the Policy Engine
// later (C6); the Planner only needs these names to build candidate plans.
const (
	ToolGetBusinessHours         = "get_business_hours"
	ToolGetServicePackages       = "get_service_packages"
	ToolCheckServiceAvailability = "check_service_availability"
	ToolBookAppointment          = "book_appointment"
	ToolCancelAppointment        = "cancel_appointment"
	ToolRescheduleAppointment    = "reschedule_appointment"
	ToolLookupServicesInfo       = "lookup_services_info"
)

// requiredSlotsForBooking are the slots a book plan needs before
// check_service_availability/book_appointment are proposed (spec example 3:
// "missing_slots ⊇ {client_name, client_email}").
var requiredSlotsForBooking = []string{
	domain.SlotServiceType,
	domain.SlotPreferredDate,
	domain.SlotPreferredTime,
	domain.SlotClientName,
	domain.SlotClientEmail,
}

// Planner runs the Planner stage.
type Planner struct {
	client *llm.Client
}

// New builds a Planner backed by client. client may be nil to force the
// deterministic-only path (used by the Legacy Orchestrator, C11).
func New(client *llm.Client) *Planner {
	return &Planner{client: client}
}

// Plan never raises: on any LLM failure it uses the deterministic per-intent
// default (spec §4.5). Output is always truncated to MaxPlanLength and never
// references a tool outside manifestNames.
func (p *Planner) Plan(ctx context.Context, intent domain.Intent, slots map[string]string, manifestNames map[string]bool) domain.PlannerOutput {
	deterministic, complete := deterministicPlan(intent, slots, manifestNames)
	if complete {
		return finalize(deterministic, missingSlots(intent, slots), manifestNames)
	}

	if p.client != nil {
		ctx, cancel := llm.WithStageBudget(ctx, Budget)
		defer cancel()
		prompt := buildPrompt(intent, slots, manifestNames)
		if value, err := p.client.GenerateJSON(ctx, prompt, schema.PlannerV1); err == nil {
			if out, ok := decodePlannerOutput(value); ok {
				filtered := filterUnknownTools(out.ToolCalls, manifestNames)
				if len(filtered) > 0 {
					return finalize(domain.PlannerOutput{ToolCalls: filtered}, out.MissingSlots, manifestNames)
				}
			}
		}
	}

	return finalize(deterministic, missingSlots(intent, slots), manifestNames)
}

// deterministicPlan returns the fixed per-intent plan and whether it is
// considered "complete" (all required slots present) and thus should be used
// without consulting the LLM at all (spec §4.5 "deterministic fast-path").
func deterministicPlan(intent domain.Intent, slots map[string]string, manifestNames map[string]bool) (domain.PlannerOutput, bool) {
	switch intent {
	case domain.IntentInfoHours:
		return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
			{Tool: ToolGetBusinessHours, Args: map[string]any{}},
		}}, true

	case domain.IntentInfoPrices, domain.IntentInfoServices:
		return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
			{Tool: ToolGetServicePackages, Args: map[string]any{}},
		}}, true

	case domain.IntentBook:
		if hasAllSlots(slots, requiredSlotsForBooking) {
			args := bookingArgs(slots)
			return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
				{Tool: ToolCheckServiceAvailability, Args: args},
				{Tool: ToolBookAppointment, Args: args},
			}}, true
		}
		if hasSlot(slots, domain.SlotPreferredDate) && hasSlot(slots, domain.SlotPreferredTime) {
			return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
				{Tool: ToolCheckServiceAvailability, Args: bookingArgs(slots)},
			}}, true
		}
		return domain.PlannerOutput{ToolCalls: nil}, true

	case domain.IntentCancel:
		if hasSlot(slots, domain.SlotBookingID) {
			return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
				{Tool: ToolCancelAppointment, Args: map[string]any{domain.SlotBookingID: slots[domain.SlotBookingID]}},
			}}, true
		}
		return domain.PlannerOutput{ToolCalls: nil}, true

	case domain.IntentReschedule:
		if hasSlot(slots, domain.SlotBookingID) && hasSlot(slots, domain.SlotPreferredDate) {
			return domain.PlannerOutput{ToolCalls: []domain.ToolCall{
				{Tool: ToolRescheduleAppointment, Args: bookingArgs(slots)},
			}}, true
		}
		return domain.PlannerOutput{ToolCalls: nil}, true

	case domain.IntentGreeting, domain.IntentChitchat, domain.IntentOther:
		return domain.PlannerOutput{ToolCalls: nil}, true

	default:
		return domain.PlannerOutput{ToolCalls: nil}, false
	}
}

func bookingArgs(slots map[string]string) map[string]any {
	args := map[string]any{}
	for _, key := range []string{
		domain.SlotServiceType, domain.SlotPreferredDate, domain.SlotPreferredTime,
		domain.SlotClientName, domain.SlotClientEmail, domain.SlotClientPhone,
		domain.SlotStaffName, domain.SlotBookingID,
	} {
		if v, ok := slots[key]; ok && v != "" {
			args[key] = v
		}
	}
	return args
}

func hasSlot(slots map[string]string, key string) bool {
	v, ok := slots[key]
	return ok && v != ""
}

func hasAllSlots(slots map[string]string, keys []string) bool {
	for _, k := range keys {
		if !hasSlot(slots, k) {
			return false
		}
	}
	return true
}

// missingSlots computes the slots C9 should ask for next, per spec §4.5
// "by inspecting the argument_shape of the (would-be) required tools".
func missingSlots(intent domain.Intent, slots map[string]string) []string {
	var required []string
	switch intent {
	case domain.IntentBook:
		required = requiredSlotsForBooking
	case domain.IntentCancel, domain.IntentReschedule:
		required = []string{domain.SlotBookingID}
	default:
		return []string{}
	}
	missing := make([]string, 0, len(required))
	for _, k := range required {
		if !hasSlot(slots, k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// finalize enforces I-5 (≤3 calls), B-4 (unknown tools dropped, empty plan
// falls back to the deterministic default) and seeds non-nil collections.
func finalize(plan domain.PlannerOutput, missing []string, manifestNames map[string]bool) domain.PlannerOutput {
	calls := filterUnknownTools(plan.ToolCalls, manifestNames)
	if len(calls) > domain.MaxPlanLength {
		calls = calls[:domain.MaxPlanLength]
	}
	if calls == nil {
		calls = []domain.ToolCall{}
	}
	if missing == nil {
		missing = []string{}
	}
	return domain.PlannerOutput{ToolCalls: calls, MissingSlots: missing}
}

// filterUnknownTools drops any call whose tool name is absent from the
// workspace manifest (B-4). A nil manifestNames means "no filtering" (used
// by callers that haven't resolved a manifest yet, e.g. unit tests).
func filterUnknownTools(calls []domain.ToolCall, manifestNames map[string]bool) []domain.ToolCall {
	if manifestNames == nil {
		return calls
	}
	out := make([]domain.ToolCall, 0, len(calls))
	for _, c := range calls {
		if manifestNames[c.Tool] {
			out = append(out, c)
		}
	}
	return out
}

func buildPrompt(intent domain.Intent, slots map[string]string, manifestNames map[string]bool) string {
	names := make([]string, 0, len(manifestNames))
	for n := range manifestNames {
		names = append(names, n)
	}
	return fmt.Sprintf(
		"Intent: %s\nKnown slots: %v\nAvailable tools: %v\nReturn a planner_v1 JSON object with at most %d tool_calls, no natural-language output.",
		intent, slots, names, domain.MaxPlanLength,
	)
}

func decodePlannerOutput(value any) (domain.PlannerOutput, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return domain.PlannerOutput{}, false
	}
	out := domain.PlannerOutput{}
	if rawCalls, ok := m["tool_calls"].([]any); ok {
		for _, rc := range rawCalls {
			cm, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			tool, _ := cm["tool"].(string)
			args, _ := cm["args"].(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			if tool != "" {
				out.ToolCalls = append(out.ToolCalls, domain.ToolCall{Tool: tool, Args: args})
			}
		}
	}
	if rawMissing, ok := m["missing_slots"].([]any); ok {
		for _, rm := range rawMissing {
			if s, ok := rm.(string); ok {
				out.MissingSlots = append(out.MissingSlots, s)
			}
		}
	}
	return out, true
}
