package api

import (
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// decideUserMessage mirrors the wire shape of spec §6's request body, which
// differs slightly from domain.UserMessage (timestamp_iso instead of a
// time.Time field).
type decideUserMessage struct {
	Text         string `json:"text" binding:"required"`
	MessageID    string `json:"message_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Locale       string `json:"locale"`
	TimestampISO string `json:"timestamp_iso"`
}

// decideContext mirrors spec §6's request "context" object. IsGroup and
// AddressedToBot are additive fields for the supplemented Activation Gate
// (C0); both default to false, which keeps every direct-message request
// behaving exactly as spec §3-§8 describe.
type decideContext struct {
	Platform       string `json:"platform"`
	Channel        string `json:"channel"`
	BusinessName   string `json:"business_name"`
	Vertical       string `json:"vertical"`
	IsGroup        bool   `json:"is_group"`
	AddressedToBot bool   `json:"addressed_to_bot"`
}

// decideState mirrors spec §6's request "state" object.
type decideState struct {
	FSMState          *string                   `json:"fsm_state"`
	Slots             map[string]string         `json:"slots"`
	LastKObservations []domain.ToolObservation  `json:"last_k_observations"`
}

// decideRequest is the full POST /orchestrator/decide body.
type decideRequest struct {
	UserMessage decideUserMessage `json:"user_message" binding:"required"`
	Context     decideContext     `json:"context"`
	State       decideState       `json:"state"`
}

// toSnapshot builds the pipeline's domain.Snapshot from the wire request and
// the required request headers (workspace/conversation id come from headers,
// never the body, per spec §6).
func toSnapshot(workspaceID, conversationID string, req decideRequest) domain.Snapshot {
	ts, _ := time.Parse(time.RFC3339, req.UserMessage.TimestampISO)

	slots := req.State.Slots
	if slots == nil {
		slots = map[string]string{}
	}
	observations := req.State.LastKObservations
	if observations == nil {
		observations = []domain.ToolObservation{}
	}
	if len(observations) > domain.MaxObservationHistory {
		observations = observations[len(observations)-domain.MaxObservationHistory:]
	}

	fsmState := ""
	if req.State.FSMState != nil {
		fsmState = *req.State.FSMState
	}

	return domain.Snapshot{
		WorkspaceID:    workspaceID,
		ConversationID: conversationID,
		UserMessage: domain.UserMessage{
			Text:      req.UserMessage.Text,
			MessageID: req.UserMessage.MessageID,
			From:      req.UserMessage.From,
			To:        req.UserMessage.To,
			Locale:    req.UserMessage.Locale,
			Timestamp: ts,
		},
		Context: domain.Context{
			Channel:      req.Context.Channel,
			Vertical:     req.Context.Vertical,
			BusinessName: req.Context.BusinessName,
		},
		State: domain.ConversationState{
			FSMState:          fsmState,
			Slots:             slots,
			LastKObservations: observations,
		},
	}
}
