package broker

import (
	"sync"
	"time"
)

// circuitState is the breaker's current disposition.
type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half_open"
)

// windowSize bounds the trailing-outcome window used for the percentage
// trigger (spec B-3/§4.7: "5 consecutive OR 50% of last 20").
const windowSize = 20

// consecutiveFailureThreshold is the other, independent trigger.
const consecutiveFailureThreshold = 5

// windowFailureRatio is the percentage trigger.
const windowFailureRatio = 0.5

// circuitBreaker implements the per-(workspace,tool) breaker described in
// spec §4.7/§8.3. It differs from a conventional consecutive-failure-only
// breaker in two ways the spec requires: it also opens when at least half of
// the last 20 outcomes failed (even if none were consecutive), and it closes
// from half-open after exactly ONE success rather than a configurable
// threshold.
type circuitBreaker struct {
	cooldown time.Duration

	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	outcomes            [windowSize]bool // true = failure
	filled              int
	cursor              int
	openedAt            time.Time
}

func newCircuitBreaker(cooldown time.Duration) *circuitBreaker {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &circuitBreaker{cooldown: cooldown, state: circuitClosed}
}

// Allow reports whether a call may proceed, transitioning open→half_open
// once the cooldown has elapsed.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = circuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// State returns the breaker's current state (for telemetry).
func (b *circuitBreaker) State() circuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordSuccess reports a successful call.
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(false)
	switch b.state {
	case circuitHalfOpen:
		b.transitionTo(circuitClosed)
	case circuitClosed:
		b.consecutiveFailures = 0
	}
}

// RecordFailure reports a failed call.
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(true)
	b.consecutiveFailures++

	switch b.state {
	case circuitHalfOpen:
		b.transitionTo(circuitOpen)
	case circuitClosed:
		if b.consecutiveFailures >= consecutiveFailureThreshold || b.windowTriggered() {
			b.transitionTo(circuitOpen)
		}
	}
}

func (b *circuitBreaker) record(failed bool) {
	b.outcomes[b.cursor] = failed
	b.cursor = (b.cursor + 1) % windowSize
	if b.filled < windowSize {
		b.filled++
	}
}

func (b *circuitBreaker) windowTriggered() bool {
	if b.filled < windowSize {
		return false
	}
	failures := 0
	for _, f := range b.outcomes {
		if f {
			failures++
		}
	}
	return float64(failures)/float64(windowSize) >= windowFailureRatio
}

func (b *circuitBreaker) transitionTo(state circuitState) {
	b.state = state
	b.consecutiveFailures = 0
	b.filled = 0
	b.cursor = 0
	if state == circuitOpen {
		b.openedAt = time.Now()
	}
}

// circuitRegistry holds one breaker per (workspace, tool) pair.
type circuitRegistry struct {
	cooldown time.Duration

	mu       sync.Mutex
	breakers map[string]*circuitBreaker
}

func newCircuitRegistry(cooldown time.Duration) *circuitRegistry {
	return &circuitRegistry{cooldown: cooldown, breakers: make(map[string]*circuitBreaker)}
}

func (r *circuitRegistry) get(key string) *circuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = newCircuitBreaker(r.cooldown)
		r.breakers[key] = b
	}
	return b
}
