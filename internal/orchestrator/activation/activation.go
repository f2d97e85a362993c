// Package activation implements the Activation Gate (C0): a pre-router
// check that short-circuits unaddressed group messages before any pipeline
// budget is spent, plus the /send allow|deny|inherit operator override.
package activation

import (
	"sync"

	"github.com/nictes1/decision-orchestrator/internal/policy"
)

// GroupState is the per-conversation activation/send configuration a human
// operator can set via chat commands.
type GroupState struct {
	Mode         policy.GroupActivationMode // zero value treated as ActivationMention
	SendOverride policy.SendPolicyOverride  // empty means "inherit" (no override)
}

// Store persists GroupState per conversation. The default in-process
// implementation is process-wide and rebuildable from scratch, matching the
// lifecycle the rest of the pipeline's process-wide tables follow.
type Store interface {
	Get(conversationID string) GroupState
	Set(conversationID string, state GroupState)
}

// MemoryStore is the default Store: a mutex-guarded map, good enough for a
// single process instance.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]GroupState
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]GroupState)}
}

func (s *MemoryStore) Get(conversationID string) GroupState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[conversationID]
}

func (s *MemoryStore) Set(conversationID string, state GroupState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[conversationID] = state
}

// Decision is the Gate's verdict for one inbound message.
type Decision struct {
	// ShouldRun is false when the message must be dropped without running
	// any pipeline stage (an unaddressed group message under "mention"
	// mode, or a recognised /activation or /send command that only updates
	// state).
	ShouldRun bool
	// Muted is true when the pipeline should still run (to keep slots/state
	// current) but the Response Generator's output must be replaced with an
	// empty acknowledgement rather than delivered to the user.
	Muted bool
}

// Gate evaluates the Activation Gate for one inbound message.
type Gate struct {
	store Store
}

// New builds a Gate backed by store.
func New(store Store) *Gate {
	return &Gate{store: store}
}

// Evaluate applies spec's supplemented C0 behaviour:
//  1. If text is an /activation or /send command, update the stored state
//     for conversationID and stop (ShouldRun=false); commands never reach
//     the pipeline.
//  2. If the conversation is a group and not addressed to the bot, and the
//     stored mode is not ActivationAlways, stop (ShouldRun=false).
//  3. Otherwise the pipeline runs; Muted reflects the stored send-policy
//     override.
func (g *Gate) Evaluate(conversationID string, isGroup, addressedToBot bool, text string) Decision {
	state := g.store.Get(conversationID)

	if cmd := policy.ParseActivationCommand(text); cmd.HasCommand {
		if cmd.Mode != nil {
			state.Mode = *cmd.Mode
			g.store.Set(conversationID, state)
		}
		return Decision{ShouldRun: false}
	}

	if cmd := policy.ParseSendPolicyCommand(text); cmd.HasCommand {
		switch cmd.Mode {
		case string(policy.SendPolicyAllow):
			state.SendOverride = policy.SendPolicyAllow
		case string(policy.SendPolicyDeny):
			state.SendOverride = policy.SendPolicyDeny
		case string(policy.SendPolicyInherit):
			state.SendOverride = ""
		}
		g.store.Set(conversationID, state)
		return Decision{ShouldRun: false}
	}

	mode := state.Mode
	if mode == "" {
		mode = policy.ActivationMention
	}
	if isGroup && !addressedToBot && mode != policy.ActivationAlways {
		return Decision{ShouldRun: false}
	}

	return Decision{ShouldRun: true, Muted: state.SendOverride == policy.SendPolicyDeny}
}
