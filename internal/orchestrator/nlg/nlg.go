// Package nlg implements the Response Generator stage (C9), "Simple NLG": a
// deterministic, template-driven reply generator that never calls the LLM on
// the default path.
package nlg

import (
	"fmt"
	"strings"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// slotQuestions is the per-slot prompt table for targeted follow-up
// questions (spec §4.9: "one slot per turn").
var slotQuestions = map[string]string{
	domain.SlotServiceType:   "¿Qué servicio te gustaría reservar?",
	domain.SlotPreferredDate: "¿Para qué día lo necesitás?",
	domain.SlotPreferredTime: "¿A qué hora te queda mejor?",
	domain.SlotClientName:    "¿Cuál es tu nombre?",
	domain.SlotClientEmail:   "¿Me pasás tu email para confirmar la reserva?",
	domain.SlotClientPhone:   "¿Me pasás un teléfono de contacto?",
	domain.SlotBookingID:     "¿Tenés el número de tu reserva?",
}

// fallbackReply is used when the broker produced no usable observation at
// all (spec §4.9: "polite fallback ... do not promise outcomes").
const fallbackReply = "Disculpá, no pude completar eso ahora. ¿Podés intentar de nuevo en un momento?"

// Generate renders the user-facing reply for one decide() call. missingSlots
// comes from the Planner; observations comes from the Tool Broker
// (possibly empty). The result always has non-empty Text (I-3) capped at
// domain.MaxAssistantTextLen.
func Generate(intent domain.Intent, missingSlots []string, observations []domain.ToolObservation) domain.Assistant {
	if len(missingSlots) > 0 {
		return ask(missingSlots[0])
	}

	if obs, ok := lastSuccessful(observations); ok {
		return render(intent, obs)
	}

	if len(observations) > 0 {
		return polite(fallbackReply, nil)
	}

	return greet(intent)
}

func ask(slot string) domain.Assistant {
	q, ok := slotQuestions[slot]
	if !ok {
		q = "¿Podés darme un poco más de información?"
	}
	return polite(q, nil)
}

func lastSuccessful(observations []domain.ToolObservation) (domain.ToolObservation, bool) {
	for i := len(observations) - 1; i >= 0; i-- {
		if observations[i].OK {
			return observations[i], true
		}
	}
	return domain.ToolObservation{}, false
}

func render(intent domain.Intent, obs domain.ToolObservation) domain.Assistant {
	switch obs.Tool {
	case "get_business_hours":
		return polite(formatHours(obs.Result), nil)
	case "get_service_packages":
		return polite(formatServices(obs.Result), nil)
	case "book_appointment", "check_service_availability":
		return polite(formatBooking(obs.Result), []string{"Ver mis reservas", "Hacer otra reserva"})
	case "cancel_appointment":
		return polite("Listo, cancelé tu reserva.", nil)
	case "reschedule_appointment":
		return polite(formatBooking(obs.Result), nil)
	default:
		return greet(intent)
	}
}

// formatHours renders up to 4 days of business hours (spec: "hours ≤ 4
// days").
func formatHours(result map[string]any) string {
	days, _ := result["days"].([]any)
	if len(days) == 0 {
		return "No tengo el horario a mano en este momento."
	}
	if len(days) > 4 {
		days = days[:4]
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		if s, ok := d.(string); ok {
			parts = append(parts, s)
		}
	}
	return "Nuestro horario: " + strings.Join(parts, ", ") + "."
}

// formatServices renders up to 3 services (spec: "prices ≤ 3 services").
func formatServices(result map[string]any) string {
	services, _ := result["services"].([]any)
	if len(services) == 0 {
		return "No tengo la lista de servicios a mano en este momento."
	}
	if len(services) > 3 {
		services = services[:3]
	}
	parts := make([]string, 0, len(services))
	for _, s := range services {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		price, _ := m["price"].(string)
		if price != "" {
			parts = append(parts, fmt.Sprintf("%s ($%s)", name, price))
		} else {
			parts = append(parts, name)
		}
	}
	return "Estos son algunos de nuestros servicios: " + strings.Join(parts, ", ") + "."
}

// formatBooking renders id + date + time (spec: "bookings: id + date +
// time").
func formatBooking(result map[string]any) string {
	id, _ := result[domain.SlotBookingID].(string)
	date, _ := result[domain.SlotPreferredDate].(string)
	t, _ := result[domain.SlotPreferredTime].(string)
	switch {
	case id != "" && date != "" && t != "":
		return fmt.Sprintf("¡Listo! Tu reserva %s quedó para el %s a las %s.", id, date, t)
	case date != "" && t != "":
		return fmt.Sprintf("Hay disponibilidad el %s a las %s.", date, t)
	default:
		return "Tu solicitud se procesó correctamente."
	}
}

func greet(intent domain.Intent) domain.Assistant {
	switch intent {
	case domain.IntentGreeting:
		return polite("¡Hola! ¿En qué puedo ayudarte hoy?", []string{"Ver servicios", "Consultar horarios", "Reservar un turno"})
	case domain.IntentChitchat:
		return polite("¡Jaja! Contame si querés reservar o consultar algo.", nil)
	default:
		return polite("Contame qué necesitás y te ayudo con gusto.", nil)
	}
}

// polite builds an Assistant payload, truncating text to the hard cap and
// suggested replies to the hard cap (I-3: never empty).
func polite(text string, suggested []string) domain.Assistant {
	if text == "" {
		text = fallbackReply
	}
	if len(text) > domain.MaxAssistantTextLen {
		text = text[:domain.MaxAssistantTextLen]
	}
	if suggested == nil {
		suggested = []string{}
	}
	if len(suggested) > domain.MaxSuggestedReplies {
		suggested = suggested[:domain.MaxSuggestedReplies]
	}
	return domain.Assistant{Text: text, SuggestedReplies: suggested}
}
