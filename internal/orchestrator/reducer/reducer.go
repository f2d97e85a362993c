// Package reducer implements the State Reducer stage (C8): a pure function
// folding extractor slots and tool observations into a deterministic patch.
package reducer

import (
	"sort"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// Reduce folds prevSlots, extractorSlots and observations into a minimal
// SlotPatch: a slot only appears in patch.Set if its value actually changes
// relative to prevSlots. Observations always win over extractor slots for
// the same key (spec: "observations win").
func Reduce(intent domain.Intent, prevSlots, extractorSlots map[string]string, observations []domain.ToolObservation) domain.SlotPatch {
	patch := domain.NewEmptySlotPatch()

	for k, v := range extractorSlots {
		if prevSlots[k] != v {
			patch.Set[k] = v
		}
	}

	for _, obs := range observations {
		applyObservation(intent, obs, prevSlots, extractorSlots, patch.Set, &patch.Remove, &patch.CacheInvalidationKeys)
	}

	sortPatch(&patch)
	return patch
}

// applyObservation runs the per-intent/per-tool specific reducer for a
// single observation, mutating set/remove/cacheKeys in place. Only
// successful observations are authoritative; a failed observation never
// invents or clears a slot (it is left to C9 to explain the degradation).
func applyObservation(intent domain.Intent, obs domain.ToolObservation, prevSlots, extractorSlots, set map[string]string, remove *[]string, cacheKeys *[]string) {
	if !obs.OK {
		return
	}

	switch obs.Tool {
	case "book_appointment":
		if id, ok := stringField(obs.Result, domain.SlotBookingID); ok {
			set[domain.SlotBookingID] = id
		}
		bookedDate, hadDate := resolvedSlot(domain.SlotPreferredDate, prevSlots, extractorSlots)
		if !hadDate {
			bookedDate, hadDate = stringField(obs.Result, domain.SlotPreferredDate)
		}
		*remove = append(*remove, domain.SlotPreferredDate, domain.SlotPreferredTime)
		delete(set, domain.SlotPreferredDate)
		delete(set, domain.SlotPreferredTime)
		if hadDate {
			*cacheKeys = append(*cacheKeys, "availability:"+bookedDate)
		}

	case "cancel_appointment":
		*remove = append(*remove, domain.SlotBookingID)
		delete(set, domain.SlotBookingID)

	case "reschedule_appointment":
		if date, ok := stringField(obs.Result, domain.SlotPreferredDate); ok {
			set[domain.SlotPreferredDate] = date
			*cacheKeys = append(*cacheKeys, "availability:"+date)
		}
		if t, ok := stringField(obs.Result, domain.SlotPreferredTime); ok {
			set[domain.SlotPreferredTime] = t
		}
	}
}

// resolvedSlot returns a slot's effective value after this turn's extractor
// output is layered over the prior conversation state, without consulting
// the in-progress patch (which may have already dropped the key via a
// remove from an earlier observation in this same reduce pass).
func resolvedSlot(key string, prevSlots, extractorSlots map[string]string) (string, bool) {
	if v, ok := extractorSlots[key]; ok && v != "" {
		return v, true
	}
	if v, ok := prevSlots[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func stringField(result map[string]any, key string) (string, bool) {
	v, ok := result[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// sortPatch gives patch.Remove and patch.CacheInvalidationKeys a
// deterministic order so equal-content patches are byte-identical (spec
// §4.8 R-3: "deterministic key order so patches are diff-stable").
func sortPatch(patch *domain.SlotPatch) {
	sort.Strings(patch.Remove)
	sort.Strings(patch.CacheInvalidationKeys)
	patch.Remove = dedupe(patch.Remove)
	patch.CacheInvalidationKeys = dedupe(patch.CacheInvalidationKeys)
}

func dedupe(ss []string) []string {
	if len(ss) == 0 {
		return ss
	}
	out := ss[:0:0]
	var last string
	for i, s := range ss {
		if i == 0 || s != last {
			out = append(out, s)
		}
		last = s
	}
	return out
}
