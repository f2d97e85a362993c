package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtract_NoClientFallsBackToHeuristic(t *testing.T) {
	e := New(nil)
	msg := domain.UserMessage{Text: "quiero reservar un turno para mañana", Locale: "es-AR", Timestamp: time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)}

	out := e.Extract(context.Background(), msg, map[string]string{}, "peluqueria")

	assert.Equal(t, domain.IntentBook, out.Intent)
	assert.Equal(t, FallbackConfidence, out.Confidence)
	assert.Equal(t, "2026-07-31", out.Slots[domain.SlotPreferredDate])
}

func TestExtract_HeuristicGreeting(t *testing.T) {
	e := New(nil)
	msg := domain.UserMessage{Text: "Hola, buenas tardes", Locale: "es-AR"}

	out := e.Extract(context.Background(), msg, nil, "peluqueria")

	assert.Equal(t, domain.IntentGreeting, out.Intent)
}

func TestExtract_HeuristicCancelTakesPriorityOverBookKeyword(t *testing.T) {
	e := New(nil)
	msg := domain.UserMessage{Text: "necesito cancelar el turno que reservé", Locale: "es-AR"}

	out := e.Extract(context.Background(), msg, nil, "peluqueria")

	assert.Equal(t, domain.IntentCancel, out.Intent)
}

func TestExtract_HeuristicExtractsEmailAndPhone(t *testing.T) {
	e := New(nil)
	msg := domain.UserMessage{Text: "mi mail es ana@ejemplo.com y mi telefono 11-2233-4455", Locale: "es-AR"}

	out := e.Extract(context.Background(), msg, nil, "peluqueria")

	assert.Equal(t, "ana@ejemplo.com", out.Slots[domain.SlotClientEmail])
	assert.NotEmpty(t, out.Slots[domain.SlotClientPhone])
}

func TestExtract_PreservesKnownSlotsOnHeuristicPath(t *testing.T) {
	e := New(nil)
	msg := domain.UserMessage{Text: "quiero un turno", Locale: "es-AR"}
	known := map[string]string{domain.SlotServiceType: "corte"}

	out := e.Extract(context.Background(), msg, known, "peluqueria")

	assert.Equal(t, "corte", out.Slots[domain.SlotServiceType])
}

func TestDecodeExtractorOutput_RejectsNonMapValue(t *testing.T) {
	_, ok := decodeExtractorOutput("not a map")
	assert.False(t, ok)
}

func TestDecodeExtractorOutput_RejectsMissingIntent(t *testing.T) {
	_, ok := decodeExtractorOutput(map[string]any{"confidence": 0.9})
	assert.False(t, ok)
}

func TestLocaleTimezone_KnownAndUnknownLocales(t *testing.T) {
	assert.Equal(t, "America/Argentina/Buenos_Aires", localeTimezone("es-AR"))
	assert.Equal(t, "UTC", localeTimezone("fr-FR"))
}
