// Package domain holds the typed records that flow between pipeline stages.
// Every payload crossing a component boundary is a value of one of these
// types; nothing downstream of the Decision API handles free-form maps.
package domain

import "time"

// Intent is the closed set of conversational intents the Extractor can
// classify a message into.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentInfoServices Intent = "info_services"
	IntentInfoPrices   Intent = "info_prices"
	IntentInfoHours    Intent = "info_hours"
	IntentBook         Intent = "book"
	IntentCancel       Intent = "cancel"
	IntentReschedule   Intent = "reschedule"
	IntentChitchat     Intent = "chitchat"
	IntentOther        Intent = "other"
)

// Slot names form a closed set; the Extractor and Planner never invent new
// slot keys outside this list.
const (
	SlotServiceType    = "service_type"
	SlotPreferredDate  = "preferred_date"
	SlotPreferredTime  = "preferred_time"
	SlotClientName     = "client_name"
	SlotClientEmail    = "client_email"
	SlotClientPhone    = "client_phone"
	SlotStaffName      = "staff_name"
	SlotBookingID      = "booking_id"
)

// UserMessage is the inbound message carried in a Conversation Snapshot.
type UserMessage struct {
	Text      string    `json:"text"`
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Locale    string    `json:"locale"`
	Timestamp time.Time `json:"timestamp"`
}

// Context carries channel/vertical metadata for a conversation.
type Context struct {
	Channel      string `json:"channel"`
	Vertical     string `json:"vertical"`
	BusinessName string `json:"business_name"`
}

// ConversationState is the caller-supplied slot/FSM state for a conversation.
type ConversationState struct {
	FSMState          string        `json:"fsm_state,omitempty"`
	Slots             map[string]string `json:"slots"`
	LastKObservations []ToolObservation `json:"last_k_observations"`
}

// MaxObservationHistory bounds ConversationState.LastKObservations (k≤8).
const MaxObservationHistory = 8

// Snapshot is the full, immutable input to a single decide() call.
type Snapshot struct {
	WorkspaceID    string            `json:"workspace_id"`
	ConversationID string            `json:"conversation_id"`
	UserMessage    UserMessage       `json:"user_message"`
	Context        Context           `json:"context"`
	State          ConversationState `json:"state"`
}

// ExtractorOutput is the extractor_v1-schema result of the Extractor stage.
type ExtractorOutput struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
}

// ToolCall is a single planned (or executed) tool invocation.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// MaxPlanLength is the hard cap on tool_calls length (I-5).
const MaxPlanLength = 3

// PlannerOutput is the planner_v1-schema result of the Planner stage.
type PlannerOutput struct {
	ToolCalls    []ToolCall `json:"tool_calls"`
	MissingSlots []string   `json:"missing_slots"`
}

// ToolPolicy is the per-tool policy metadata carried in a manifest entry.
type ToolPolicy struct {
	MaxRPSPerWorkspace float64 `json:"max_rps_per_workspace"`
	RequiresWorkspace  bool    `json:"requires_workspace"`
	Idempotent         bool    `json:"idempotent"`
	Write              bool    `json:"write"`
}

// ArgumentSpec names a single argument of a tool and its primitive type.
type ArgumentSpec struct {
	Name string `json:"name"`
	Type string `json:"type"` // "string", "number", "bool"
}

// ManifestEntry describes one tool available to a workspace.
type ManifestEntry struct {
	Name          string         `json:"name"`
	ArgumentShape []ArgumentSpec `json:"argument_shape"`
	Policy        ToolPolicy     `json:"policy"`
	TimeoutMS     int            `json:"timeout_ms"`
}

// ErrorKind enumerates the taxonomy an Observation may report (never raised
// to the caller — always encoded in the observation itself).
type ErrorKind string

const (
	ErrorKindTransient    ErrorKind = "transient"
	ErrorKindPermanent    ErrorKind = "permanent"
	ErrorKindCircuitOpen  ErrorKind = "circuit_open"
	ErrorKindPolicyDenied ErrorKind = "policy_denied"
	ErrorKindTimeout      ErrorKind = "timeout"
)

// ToolObservation is the structured outcome of one executed tool call,
// always produced whether the call succeeded or failed.
type ToolObservation struct {
	Tool      string         `json:"tool"`
	OK        bool           `json:"ok"`
	Result    map[string]any `json:"result"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Attempts  int            `json:"attempts"`
}

// SlotPatch is the minimal deterministic delta the State Reducer emits.
type SlotPatch struct {
	Set                   map[string]string `json:"set"`
	Remove                []string          `json:"remove"`
	CacheInvalidationKeys []string          `json:"cache_invalidation_keys"`
}

// NewEmptySlotPatch returns a patch with every collection initialised
// (never nil), satisfying the "empty collections, never absent keys" rule.
func NewEmptySlotPatch() SlotPatch {
	return SlotPatch{
		Set:                   map[string]string{},
		Remove:                []string{},
		CacheInvalidationKeys: []string{},
	}
}

// StageMS records per-stage wall-clock latency for one decide() call.
type StageMS struct {
	Extractor int64 `json:"extractor"`
	Planner   int64 `json:"planner"`
	Policy    int64 `json:"policy"`
	Broker    int64 `json:"broker"`
	Reducer   int64 `json:"reducer"`
	NLG       int64 `json:"nlg"`
}

// Sum returns the sum of all stage latencies.
func (s StageMS) Sum() int64 {
	return s.Extractor + s.Planner + s.Policy + s.Broker + s.Reducer + s.NLG
}

// Route identifies which orchestrator produced a Decision Response.
type Route string

const (
	RouteSLM    Route = "slm_pipeline"
	RouteLegacy Route = "legacy"
)

// Telemetry accompanies every Decision Response.
type Telemetry struct {
	Route          Route   `json:"route"`
	Intent         Intent  `json:"intent"`
	Confidence     float64 `json:"confidence"`
	StageMS        StageMS `json:"stage_ms"`
	TotalMS        int64   `json:"total_ms"`
	Fallback       bool    `json:"fallback,omitempty"`
	BudgetExceeded bool    `json:"budget_exceeded,omitempty"`
}

// ExecutedCall pairs a planned call with its observation, length ≤ 3.
type ExecutedCall struct {
	ToolCall
	Observation ToolObservation `json:"observation"`
}

// Assistant is the user-facing reply payload.
type Assistant struct {
	Text             string   `json:"text"`
	SuggestedReplies []string `json:"suggested_replies"`
}

// MaxAssistantTextLen is the hard cap on Assistant.Text (spec §3, §8 P-5).
const MaxAssistantTextLen = 600

// MaxSuggestedReplies caps Assistant.SuggestedReplies.
const MaxSuggestedReplies = 5

// DecisionResponse is the Decision API's output contract. Every field must
// be populated on every response; absent data is represented by an empty
// collection, never an absent key (spec §9 "Response contract
// compatibility").
type DecisionResponse struct {
	Assistant Assistant      `json:"assistant"`
	ToolCalls []ExecutedCall `json:"tool_calls"`
	Patch     SlotPatch      `json:"patch"`
	Telemetry Telemetry      `json:"telemetry"`
}

// NewEmptyDecisionResponse seeds every collection so callers never observe
// an absent key even on a degraded path.
func NewEmptyDecisionResponse() DecisionResponse {
	return DecisionResponse{
		Assistant: Assistant{SuggestedReplies: []string{}},
		ToolCalls: []ExecutedCall{},
		Patch:     NewEmptySlotPatch(),
	}
}
