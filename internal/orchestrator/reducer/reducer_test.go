package reducer

import (
	"testing"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/stretchr/testify/assert"
)

func TestReduce_GreetingWithNoObservationsProducesEmptyPatch(t *testing.T) {
	patch := Reduce(domain.IntentGreeting, map[string]string{}, map[string]string{}, nil)

	assert.Empty(t, patch.Set)
	assert.NotNil(t, patch.Set)
	assert.Empty(t, patch.Remove)
	assert.Empty(t, patch.CacheInvalidationKeys)
}

func TestReduce_OnlyIncludesChangedSlots(t *testing.T) {
	prev := map[string]string{domain.SlotServiceType: "corte"}
	extracted := map[string]string{domain.SlotServiceType: "corte", domain.SlotPreferredDate: "2026-07-31"}

	patch := Reduce(domain.IntentBook, prev, extracted, nil)

	_, unchanged := patch.Set[domain.SlotServiceType]
	assert.False(t, unchanged)
	assert.Equal(t, "2026-07-31", patch.Set[domain.SlotPreferredDate])
}

func TestReduce_SuccessfulBookingSetsBookingIDAndClearsDateTime(t *testing.T) {
	extracted := map[string]string{domain.SlotPreferredDate: "2026-07-31", domain.SlotPreferredTime: "15:00"}
	obs := []domain.ToolObservation{
		{Tool: "book_appointment", OK: true, Result: map[string]any{"booking_id": "bk-1"}},
	}

	patch := Reduce(domain.IntentBook, map[string]string{}, extracted, obs)

	assert.Equal(t, "bk-1", patch.Set[domain.SlotBookingID])
	assert.Contains(t, patch.Remove, domain.SlotPreferredDate)
	assert.Contains(t, patch.Remove, domain.SlotPreferredTime)
	assert.Contains(t, patch.CacheInvalidationKeys, "availability:2026-07-31")
	_, stillSet := patch.Set[domain.SlotPreferredDate]
	assert.False(t, stillSet)
}

func TestReduce_FailedObservationNeverMutatesPatch(t *testing.T) {
	obs := []domain.ToolObservation{
		{Tool: "book_appointment", OK: false, ErrorKind: domain.ErrorKindTransient},
	}

	patch := Reduce(domain.IntentBook, map[string]string{}, map[string]string{}, obs)

	assert.Empty(t, patch.Set)
	assert.Empty(t, patch.Remove)
}

func TestReduce_CancelRemovesBookingID(t *testing.T) {
	obs := []domain.ToolObservation{{Tool: "cancel_appointment", OK: true, Result: map[string]any{}}}
	prev := map[string]string{domain.SlotBookingID: "bk-1"}

	patch := Reduce(domain.IntentCancel, prev, map[string]string{}, obs)

	assert.Contains(t, patch.Remove, domain.SlotBookingID)
}

func TestReduce_ObservationWinsOverExtractorForBookingID(t *testing.T) {
	extracted := map[string]string{domain.SlotBookingID: "stale-id"}
	obs := []domain.ToolObservation{
		{Tool: "book_appointment", OK: true, Result: map[string]any{"booking_id": "authoritative-id"}},
	}

	patch := Reduce(domain.IntentBook, map[string]string{}, extracted, obs)

	assert.Equal(t, "authoritative-id", patch.Set[domain.SlotBookingID])
}

func TestReduce_IsDeterministicAndDiffStable(t *testing.T) {
	extracted := map[string]string{domain.SlotServiceType: "corte", domain.SlotClientEmail: "a@b.com"}
	obs := []domain.ToolObservation{{Tool: "book_appointment", OK: true, Result: map[string]any{"booking_id": "bk-1"}}}

	p1 := Reduce(domain.IntentBook, map[string]string{}, extracted, obs)
	p2 := Reduce(domain.IntentBook, map[string]string{}, extracted, obs)

	assert.Equal(t, p1, p2)
	assert.Equal(t, []string{domain.SlotPreferredDate, domain.SlotPreferredTime}, p1.Remove)
}
