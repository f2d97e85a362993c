package activation

import (
	"testing"

	"github.com/nictes1/decision-orchestrator/internal/policy"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate_DirectMessageAlwaysRuns(t *testing.T) {
	g := New(NewMemoryStore())
	d := g.Evaluate("conv-1", false, false, "hola")
	assert.True(t, d.ShouldRun)
	assert.False(t, d.Muted)
}

func TestEvaluate_UnaddressedGroupMessageUnderMentionModeIsDropped(t *testing.T) {
	g := New(NewMemoryStore())
	d := g.Evaluate("conv-group", true, false, "che alguien sabe el horario")
	assert.False(t, d.ShouldRun)
}

func TestEvaluate_AddressedGroupMessageRuns(t *testing.T) {
	g := New(NewMemoryStore())
	d := g.Evaluate("conv-group", true, true, "@bot horario?")
	assert.True(t, d.ShouldRun)
}

func TestEvaluate_ActivationAlwaysCommandSwitchesGroupMode(t *testing.T) {
	g := New(NewMemoryStore())

	cmd := g.Evaluate("conv-group", true, true, "/activation always")
	assert.False(t, cmd.ShouldRun)

	after := g.Evaluate("conv-group", true, false, "y el horario?")
	assert.True(t, after.ShouldRun)
}

func TestEvaluate_ActivationCommandWithUnrecognizedModeLeavesStateUnchanged(t *testing.T) {
	g := New(NewMemoryStore())
	g.Evaluate("conv-group", true, true, "/activation bogus")

	after := g.Evaluate("conv-group", true, false, "y el horario?")
	assert.False(t, after.ShouldRun)
}

func TestEvaluate_SendDenyMutesWithoutBlockingPipeline(t *testing.T) {
	g := New(NewMemoryStore())

	cmd := g.Evaluate("conv-1", false, false, "/send deny")
	assert.False(t, cmd.ShouldRun)

	after := g.Evaluate("conv-1", false, false, "quiero reservar un turno")
	assert.True(t, after.ShouldRun)
	assert.True(t, after.Muted)
}

func TestEvaluate_SendInheritClearsOverride(t *testing.T) {
	g := New(NewMemoryStore())
	g.Evaluate("conv-1", false, false, "/send deny")
	g.Evaluate("conv-1", false, false, "/send inherit")

	after := g.Evaluate("conv-1", false, false, "hola")
	assert.True(t, after.ShouldRun)
	assert.False(t, after.Muted)
}

func TestEvaluate_NonCommandTextIsNotConsumedAsCommand(t *testing.T) {
	g := New(NewMemoryStore())
	d := g.Evaluate("conv-1", false, false, "necesito activar mi cuenta")
	assert.True(t, d.ShouldRun)
}

func TestMemoryStore_GetSetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	s.Set("conv-x", GroupState{Mode: policy.ActivationAlways, SendOverride: policy.SendPolicyAllow})

	got := s.Get("conv-x")
	assert.Equal(t, policy.ActivationAlways, got.Mode)
	assert.Equal(t, policy.SendPolicyAllow, got.SendOverride)
}

func TestMemoryStore_GetUnknownConversationReturnsZeroValue(t *testing.T) {
	s := NewMemoryStore()
	got := s.Get("never-seen")
	assert.Equal(t, GroupState{}, got)
}
