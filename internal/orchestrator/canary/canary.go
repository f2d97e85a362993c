// Package canary implements the Canary Router (C12): a stable-hash traffic
// split between the SLM and Legacy orchestrators, with a process-wide
// kill-switch.
package canary

import (
	"hash/fnv"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// Settings are the two process-wide config values the router consults on
// every request (spec §6/§4.12), re-read per call so config changes take
// effect without a restart (live-reload).
type Settings struct {
	EnableSLMPipeline bool
	SLMCanaryPercent  int
}

// Route decides which orchestrator should handle conversationID under the
// given settings.
//   - enable=false → always Legacy.
//   - otherwise, bucket = stable_hash(conversation_id) mod 100; SLM if
//     bucket < percent, else Legacy.
func Route(conversationID string, settings Settings) domain.Route {
	if !settings.EnableSLMPipeline {
		return domain.RouteLegacy
	}
	if bucket(conversationID) < clampPercent(settings.SLMCanaryPercent) {
		return domain.RouteSLM
	}
	return domain.RouteLegacy
}

// bucket hashes key into a stable [0,100) slot, matching the fnv32a
// hash-and-mod pattern used elsewhere in the codebase for deterministic
// traffic splitting.
func bucket(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % 100)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
