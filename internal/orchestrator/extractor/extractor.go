// Package extractor implements the Extractor stage (C4): classifying intent
// and pulling slots out of free-form user text.
package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/datetime"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/llm"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/schema"
)

// Budget is the stage's LLM call budget (spec §4.4: "250 ms").
const Budget = 250 * time.Millisecond

// ConfidenceFloor is the threshold below which output is discarded in favor
// of the heuristic fallback (spec §4.4).
const ConfidenceFloor = 0.5

// FallbackConfidence is the confidence heuristic fallback output always
// reports (spec §4.4).
const FallbackConfidence = 0.5

// Extractor runs the Extractor stage.
type Extractor struct {
	client *llm.Client
}

// New builds an Extractor backed by client.
func New(client *llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract never raises: on any LLM error, low confidence, or schema
// validation failure (even after one repair retry, which llm.Client already
// performs internally), it falls back to keyword/regex heuristics.
func (e *Extractor) Extract(ctx context.Context, msg domain.UserMessage, knownSlots map[string]string, vertical string) domain.ExtractorOutput {
	ctx, cancel := llm.WithStageBudget(ctx, Budget)
	defer cancel()

	if e.client != nil {
		prompt := buildPrompt(msg, knownSlots, vertical)
		value, err := e.client.GenerateJSON(ctx, prompt, schema.ExtractorV1)
		if err == nil {
			if out, ok := decodeExtractorOutput(value); ok && out.Confidence >= ConfidenceFloor {
				return normalize(out, msg)
			}
		}
	}

	return normalize(heuristicFallback(msg.Text, knownSlots), msg)
}

func buildPrompt(msg domain.UserMessage, knownSlots map[string]string, vertical string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vertical: %s\nLocale: %s\n", vertical, msg.Locale)
	fmt.Fprintf(&b, "Known slots: %v\n", knownSlots)
	fmt.Fprintf(&b, "Closed intent set: greeting, info_services, info_prices, info_hours, book, cancel, reschedule, chitchat, other\n")
	fmt.Fprintf(&b, "Examples:\n")
	for _, ex := range fewShotExamples {
		fmt.Fprintf(&b, "  text=%q -> intent=%s\n", ex.text, ex.intent)
	}
	fmt.Fprintf(&b, "User message: %q\n", msg.Text)
	fmt.Fprintf(&b, "Return an extractor_v1 JSON object. Do not re-ask for slots already known.")
	return b.String()
}

type fewShotExample struct {
	text   string
	intent domain.Intent
}

var fewShotExamples = []fewShotExample{
	{"hola", domain.IntentGreeting},
	{"buenas tardes", domain.IntentGreeting},
	{"qué servicios tienen", domain.IntentInfoServices},
	{"cuánto cuesta un corte", domain.IntentInfoPrices},
	{"a qué hora abren", domain.IntentInfoHours},
	{"quiero reservar un turno", domain.IntentBook},
	{"necesito cancelar mi reserva", domain.IntentCancel},
	{"puedo cambiar el turno para otro día", domain.IntentReschedule},
	{"jaja que bueno", domain.IntentChitchat},
}

func decodeExtractorOutput(value any) (domain.ExtractorOutput, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return domain.ExtractorOutput{}, false
	}
	out := domain.ExtractorOutput{Slots: map[string]string{}}
	if intent, ok := m["intent"].(string); ok {
		out.Intent = domain.Intent(intent)
	}
	if conf, ok := m["confidence"].(float64); ok {
		out.Confidence = conf
	}
	if slots, ok := m["slots"].(map[string]any); ok {
		for k, v := range slots {
			if s, ok := v.(string); ok {
				out.Slots[k] = s
			}
		}
	}
	return out, out.Intent != ""
}

// normalize applies the date/time/email/phone normalization rules of §4.4
// regardless of whether the output came from the LLM or the heuristic path.
func normalize(out domain.ExtractorOutput, msg domain.UserMessage) domain.ExtractorOutput {
	tz := "UTC"
	if idx := strings.LastIndex(msg.Locale, "-"); idx >= 0 {
		tz = localeTimezone(msg.Locale)
	}
	now := msg.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if raw, ok := out.Slots[domain.SlotPreferredDate]; ok {
		if iso, ok := datetime.ResolveRelativeDate(raw, now, tz); ok {
			out.Slots[domain.SlotPreferredDate] = iso
		}
	}
	if raw, ok := out.Slots[domain.SlotPreferredTime]; ok {
		if hhmm, ok := datetime.ResolveTimeOfDay(raw); ok {
			out.Slots[domain.SlotPreferredTime] = hhmm
		}
	}
	if raw, ok := out.Slots[domain.SlotClientEmail]; ok {
		out.Slots[domain.SlotClientEmail] = datetime.NormalizeEmail(raw)
	}
	if raw, ok := out.Slots[domain.SlotClientPhone]; ok {
		out.Slots[domain.SlotClientPhone] = datetime.NormalizePhone(raw)
	}
	return out
}

// localeTimezone is a narrow, vertical-specific locale→timezone mapping; a
// real deployment would source this from workspace configuration.
func localeTimezone(locale string) string {
	switch strings.ToLower(locale) {
	case "es-ar":
		return "America/Argentina/Buenos_Aires"
	case "es-mx":
		return "America/Mexico_City"
	case "es-es":
		return "Europe/Madrid"
	default:
		return "UTC"
	}
}

var (
	priceKeywords  = regexp.MustCompile(`(?i)cu[aá]nto|precio|cuesta|tarifa`)
	hoursKeywords  = regexp.MustCompile(`(?i)hora(rio)?|abr[ei]n|cierran`)
	bookKeywords   = regexp.MustCompile(`(?i)reserv|turno|agendar|sacar.*turno`)
	cancelKeywords = regexp.MustCompile(`(?i)cancelar|anular`)
	rescheduleKw   = regexp.MustCompile(`(?i)cambiar|reprogramar|mover.*turno`)
	serviceKeywords = regexp.MustCompile(`(?i)servicio|qu[eé] hacen|qu[eé] ofrecen`)
	greetingKeywords = regexp.MustCompile(`(?i)^\s*(hola|buenas|buen[oa]s (d[ií]as|tardes|noches))\b`)
)

// heuristicFallback performs keyword dispatch over the closed intent set
// plus best-effort regex slot extraction (spec §4.4 step 4).
func heuristicFallback(text string, knownSlots map[string]string) domain.ExtractorOutput {
	intent := domain.IntentOther
	switch {
	case greetingKeywords.MatchString(text):
		intent = domain.IntentGreeting
	case cancelKeywords.MatchString(text):
		intent = domain.IntentCancel
	case rescheduleKw.MatchString(text):
		intent = domain.IntentReschedule
	case bookKeywords.MatchString(text):
		intent = domain.IntentBook
	case priceKeywords.MatchString(text):
		intent = domain.IntentInfoPrices
	case hoursKeywords.MatchString(text):
		intent = domain.IntentInfoHours
	case serviceKeywords.MatchString(text):
		intent = domain.IntentInfoServices
	}

	slots := map[string]string{}
	for k, v := range knownSlots {
		slots[k] = v
	}
	if email, ok := datetime.FindEmail(text); ok {
		slots[domain.SlotClientEmail] = datetime.NormalizeEmail(email)
	}
	if phone, ok := datetime.FindPhone(text); ok {
		slots[domain.SlotClientPhone] = datetime.NormalizePhone(phone)
	}
	for _, word := range strings.Fields(text) {
		cleaned := strings.Trim(strings.ToLower(word), ".,!?")
		if _, ok := datetime.ResolveTimeOfDay(cleaned); ok {
			slots[domain.SlotPreferredTime] = cleaned
		}
		if _, ok := datetime.ResolveRelativeDate(cleaned, time.Now(), "UTC"); ok {
			slots[domain.SlotPreferredDate] = cleaned
		}
	}

	return domain.ExtractorOutput{
		Intent:     intent,
		Confidence: FallbackConfidence,
		Slots:      slots,
	}
}
