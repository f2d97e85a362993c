package broker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// RedisIdempotencyBackend replicates the Tool Broker's write-dedup store
// (I-7) across every broker replica, using Redis's native key TTL instead of
// the in-process prune-on-touch sweep memoryIdempotencyBackend relies on.
// Selected via IDEMPOTENCY_BACKEND=redis (see internal/config).
type RedisIdempotencyBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyBackend wraps an already-configured *redis.Client.
// keyPrefix namespaces keys so a shared Redis instance can host more than
// one orchestrator deployment.
func NewRedisIdempotencyBackend(client *redis.Client, keyPrefix string) *RedisIdempotencyBackend {
	if keyPrefix == "" {
		keyPrefix = "orchestrator:idem:"
	}
	return &RedisIdempotencyBackend{client: client, prefix: keyPrefix}
}

func (r *RedisIdempotencyBackend) Get(key string) (domain.ToolObservation, bool) {
	raw, err := r.client.Get(context.Background(), r.prefix+key).Bytes()
	if err != nil {
		// redis.Nil (no entry) and any transport error both degrade to a
		// cache miss: a dedup store that is briefly unreachable must not
		// block tool execution, only fail to dedup it (spec §4.7's "best
		// effort" idempotency).
		return domain.ToolObservation{}, false
	}

	var obs domain.ToolObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return domain.ToolObservation{}, false
	}
	return obs, true
}

func (r *RedisIdempotencyBackend) Set(key string, obs domain.ToolObservation) {
	raw, err := json.Marshal(obs)
	if err != nil {
		return
	}
	// Errors are intentionally swallowed here too: losing one dedup write
	// degrades a future retry to a real re-invocation, never a correctness
	// failure for the current call.
	r.client.Set(context.Background(), r.prefix+key, raw, idempotencyTTL)
}
