package nlg

import (
	"strings"
	"testing"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerate_GreetingProducesNonEmptyReplyWithSuggestions(t *testing.T) {
	a := Generate(domain.IntentGreeting, nil, nil)

	assert.NotEmpty(t, a.Text)
	assert.LessOrEqual(t, len(a.Text), domain.MaxAssistantTextLen)
	assert.NotEmpty(t, a.SuggestedReplies)
}

func TestGenerate_MissingSlotsAsksOneQuestionAtATime(t *testing.T) {
	a := Generate(domain.IntentBook, []string{domain.SlotClientEmail, domain.SlotClientName}, nil)

	assert.Contains(t, a.Text, "email")
}

func TestGenerate_SuccessfulPriceQueryMentionsAtMostThreeServices(t *testing.T) {
	obs := []domain.ToolObservation{
		{Tool: "get_service_packages", OK: true, Result: map[string]any{"services": []any{
			map[string]any{"name": "Corte", "price": "2000"},
			map[string]any{"name": "Color", "price": "5000"},
			map[string]any{"name": "Brushing", "price": "1500"},
			map[string]any{"name": "Manicura", "price": "1000"},
		}}},
	}

	a := Generate(domain.IntentInfoPrices, nil, obs)

	assert.Equal(t, 3, strings.Count(a.Text, "$"))
}

func TestGenerate_SuccessfulBookingEchoesIDDateAndTime(t *testing.T) {
	obs := []domain.ToolObservation{
		{Tool: "check_service_availability", OK: true, Result: map[string]any{}},
		{Tool: "book_appointment", OK: true, Result: map[string]any{
			domain.SlotBookingID: "bk-42", domain.SlotPreferredDate: "2026-07-31", domain.SlotPreferredTime: "15:00",
		}},
	}

	a := Generate(domain.IntentBook, nil, obs)

	assert.Contains(t, a.Text, "bk-42")
	assert.Contains(t, a.Text, "2026-07-31")
	assert.Contains(t, a.Text, "15:00")
	assert.LessOrEqual(t, len(a.Text), 200)
}

func TestGenerate_TotalBrokerFailureProducesPoliteFallback(t *testing.T) {
	obs := []domain.ToolObservation{
		{Tool: "book_appointment", OK: false, ErrorKind: domain.ErrorKindCircuitOpen},
	}

	a := Generate(domain.IntentBook, nil, obs)

	assert.Equal(t, fallbackReply, a.Text)
}

func TestGenerate_NeverReturnsEmptyText(t *testing.T) {
	a := Generate(domain.IntentOther, nil, nil)
	assert.NotEmpty(t, a.Text)
}

func TestGenerate_HoursFormatterCapsAtFourDays(t *testing.T) {
	obs := []domain.ToolObservation{
		{Tool: "get_business_hours", OK: true, Result: map[string]any{"days": []any{
			"Lun 9-18", "Mar 9-18", "Mie 9-18", "Jue 9-18", "Vie 9-18",
		}}},
	}

	a := Generate(domain.IntentInfoHours, nil, obs)

	assert.Equal(t, 4, strings.Count(a.Text, "9-18"))
}
