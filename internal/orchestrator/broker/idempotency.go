package broker

import (
	"sync"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/infra"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// idempotencyTTL bounds how long a completed write observation is replayed
// for a repeated key (spec §4.7: "short-lived (TTL 10 min) store").
const idempotencyTTL = 10 * time.Minute

type idempotencyEntry struct {
	observation domain.ToolObservation
	storedAt    time.Time
}

// IdempotencyBackend is the pluggable key/value half of the idempotency
// cache. The default is the in-process memoryIdempotencyBackend; a
// replica-shared deployment can instead plug a Redis-backed implementation
// (see idempotency_redis.go) so I-7 holds across process restarts and
// across broker replicas, not just within one process's lifetime.
type IdempotencyBackend interface {
	Get(key string) (domain.ToolObservation, bool)
	Set(key string, obs domain.ToolObservation)
}

// memoryIdempotencyBackend is a mutex-guarded TTL map, the default backend.
type memoryIdempotencyBackend struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newMemoryIdempotencyBackend() *memoryIdempotencyBackend {
	return &memoryIdempotencyBackend{entries: make(map[string]idempotencyEntry)}
}

func (m *memoryIdempotencyBackend) Get(key string) (domain.ToolObservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.ToolObservation{}, false
	}
	if time.Since(e.storedAt) >= idempotencyTTL {
		delete(m.entries, key)
		return domain.ToolObservation{}, false
	}
	return e.observation, true
}

func (m *memoryIdempotencyBackend) Set(key string, obs domain.ToolObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = idempotencyEntry{observation: obs, storedAt: time.Now()}
	m.prune()
}

// prune drops expired entries opportunistically on write, mirroring
// cache.DedupeCache's prune-on-touch behaviour. Called with mu held.
func (m *memoryIdempotencyBackend) prune() {
	cutoff := time.Now().Add(-idempotencyTTL)
	for k, e := range m.entries {
		if e.storedAt.Before(cutoff) {
			delete(m.entries, k)
		}
	}
}

// idempotencyCache is the Tool Broker's write-dedup store (I-7). A
// singleflight.Group collapses concurrent callers sharing a key into one
// underlying invocation; the backend then lets a *later*, non-concurrent
// retry with the same key replay the cached observation without
// re-invoking the tool.
type idempotencyCache struct {
	group   infra.Group[string, domain.ToolObservation]
	backend IdempotencyBackend
}

func newIdempotencyCache() *idempotencyCache {
	return &idempotencyCache{backend: newMemoryIdempotencyBackend()}
}

func newIdempotencyCacheWithBackend(backend IdempotencyBackend) *idempotencyCache {
	if backend == nil {
		backend = newMemoryIdempotencyBackend()
	}
	return &idempotencyCache{backend: backend}
}

// Execute runs fn under single-flight + TTL-cache protection for key. An
// empty key bypasses dedup entirely (non-write calls never carry one).
func (c *idempotencyCache) Execute(key string, fn func() domain.ToolObservation) (domain.ToolObservation, bool) {
	if key == "" {
		return fn(), false
	}

	if cached, ok := c.backend.Get(key); ok {
		return cached, true
	}

	obs, _, shared := c.group.Do(key, func() (domain.ToolObservation, error) {
		if cached, ok := c.backend.Get(key); ok {
			return cached, nil
		}
		result := fn()
		c.backend.Set(key, result)
		return result, nil
	})
	return obs, shared
}
