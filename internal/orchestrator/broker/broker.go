// Package broker implements the Tool Broker stage (C7): a concurrent
// dispatcher that executes a sanitised plan with idempotency, retry,
// circuit breaking and per-tool timeouts.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/retry"
)

// DefaultCallTimeout applies when a manifest entry doesn't specify one
// (spec §4.7: "if absent, 800 ms default").
const DefaultCallTimeout = 800 * time.Millisecond

// idempotentRetry mirrors spec §4.7: "3 attempts, transient errors only,
// exponential backoff base=100ms with jitter".
var idempotentRetry = retry.Config{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2, Jitter: true}

// writeRetry allows at most one extra attempt, for the case where the first
// attempt produced no definite response (timeout/transport failure, not a
// business-level rejection).
var writeRetry = retry.Config{MaxAttempts: 2, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2, Jitter: true}

// Transport is the uniform call surface the broker invokes tools through
// (spec §8 "collaborator": call(tool_name, args, timeout, idempotency_key?)
// → Observation). The transport itself is free to be HTTP, RPC or
// in-process; the broker only depends on this interface.
type Transport interface {
	Call(ctx context.Context, tool string, args map[string]any, timeout time.Duration, idempotencyKey string) (map[string]any, error)
}

// PlannedCall is one Policy-Engine-sanitised call ready for execution: the
// tool invocation itself, its manifest policy/timeout metadata, and (for
// write tools) the idempotency key the Policy Engine computed.
type PlannedCall struct {
	domain.ToolCall
	Entry          domain.ManifestEntry
	IdempotencyKey string
}

// Broker executes sanitised plans against a Transport.
type Broker struct {
	transport      Transport
	breakers       *circuitRegistry
	idem           *idempotencyCache
	defaultTimeout time.Duration
	readRetry      retry.Config
}

// Config holds the Tool Broker's tunable defaults, sourced from spec §6's
// BROKER_DEFAULT_TIMEOUT_MS, BROKER_MAX_RETRIES and CIRCUIT_OPEN_COOLDOWN_MS.
// Zero-valued fields fall back to the package defaults (DefaultCallTimeout,
// idempotentRetry.MaxAttempts, 30s respectively).
type Config struct {
	DefaultTimeout time.Duration
	MaxRetries     int
	Cooldown       time.Duration
}

// New builds a Broker with the default in-process idempotency backend and
// cooldown as the circuit breaker's open→half_open duration (spec §4.7
// default 30s, overridable via CircuitConfig). Kept for callers that only
// need to configure the breaker cooldown; use NewWithConfig to also thread
// BROKER_DEFAULT_TIMEOUT_MS/BROKER_MAX_RETRIES.
func New(transport Transport, cooldown time.Duration) *Broker {
	return NewWithConfig(transport, Config{Cooldown: cooldown}, nil)
}

// NewWithIdempotencyBackend builds a Broker whose idempotency dedup store is
// backend instead of the in-process default. Passing nil is equivalent to
// New: a shared-nothing deployment has no need for a replicated backend, but
// a multi-replica broker fleet needs I-7 ("short-lived TTL store") to hold
// across replicas, not just within one process.
func NewWithIdempotencyBackend(transport Transport, cooldown time.Duration, backend IdempotencyBackend) *Broker {
	return NewWithConfig(transport, Config{Cooldown: cooldown}, backend)
}

// NewWithConfig builds a Broker with every spec §6 knob threaded through:
// cfg.DefaultTimeout overrides DefaultCallTimeout, cfg.MaxRetries overrides
// the idempotent-read retry policy's attempt count (writes keep their own
// fixed one-extra-attempt rule, spec §4.7), and cfg.Cooldown sets the
// circuit breaker's open→half_open duration.
func NewWithConfig(transport Transport, cfg Config, backend IdempotencyBackend) *Broker {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	readRetry := idempotentRetry
	if cfg.MaxRetries > 0 {
		readRetry.MaxAttempts = cfg.MaxRetries
	}

	return &Broker{
		transport:      transport,
		breakers:       newCircuitRegistry(cfg.Cooldown),
		idem:           newIdempotencyCacheWithBackend(backend),
		defaultTimeout: timeout,
		readRetry:      readRetry,
	}
}

// Execute runs calls against workspaceID, preserving plan order in the
// returned slice regardless of execution fan-out (spec: "plan order is
// preserved ... regardless of execution fan-out"). Write calls always run
// strictly sequentially; a maximal run of adjacent non-write calls runs
// concurrently, since by construction (the Planner only ever emits a read
// before a dependent write, never two sequential reads) no read within a
// single run depends on another read's observation.
func (b *Broker) Execute(ctx context.Context, workspaceID string, calls []PlannedCall) []domain.ExecutedCall {
	results := make([]domain.ExecutedCall, len(calls))

	i := 0
	for i < len(calls) {
		if calls[i].Entry.Policy.Write {
			results[i] = b.executeOne(ctx, workspaceID, calls[i])
			i++
			continue
		}

		j := i
		for j < len(calls) && !calls[j].Entry.Policy.Write {
			j++
		}
		b.executeConcurrent(ctx, workspaceID, calls[i:j], results[i:j])
		i = j
	}

	return results
}

func (b *Broker) executeConcurrent(ctx context.Context, workspaceID string, calls []PlannedCall, out []domain.ExecutedCall) {
	var wg sync.WaitGroup
	for idx := range calls {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			out[idx] = b.executeOne(ctx, workspaceID, calls[idx])
		}(idx)
	}
	wg.Wait()
}

// executeOne runs a single call through circuit-breaker admission,
// idempotency dedup, and the appropriate retry policy, always returning an
// ExecutedCall (never an error) per spec §7: "never raised to the caller".
func (b *Broker) executeOne(ctx context.Context, workspaceID string, call PlannedCall) domain.ExecutedCall {
	breakerKey := workspaceID + "|" + call.Tool
	breaker := b.breakers.get(breakerKey)

	if !breaker.Allow() {
		return domain.ExecutedCall{ToolCall: call.ToolCall, Observation: domain.ToolObservation{
			Tool: call.Tool, OK: false, Result: map[string]any{}, ErrorKind: domain.ErrorKindCircuitOpen,
		}}
	}

	timeout := b.defaultTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if call.Entry.TimeoutMS > 0 {
		timeout = time.Duration(call.Entry.TimeoutMS) * time.Millisecond
	}

	run := func() domain.ToolObservation {
		return b.attempt(ctx, call, timeout, breaker)
	}

	obs, _ := b.idem.Execute(call.IdempotencyKey, run)
	return domain.ExecutedCall{ToolCall: call.ToolCall, Observation: obs}
}

// attempt applies the retry policy for call.Entry.Policy.Idempotent, issuing
// real Transport calls and recording each outcome on breaker.
func (b *Broker) attempt(ctx context.Context, call PlannedCall, timeout time.Duration, breaker *circuitBreaker) domain.ToolObservation {
	cfg := b.readRetry
	if cfg.MaxAttempts <= 0 {
		cfg = idempotentRetry
	}
	if call.Entry.Policy.Write {
		cfg = writeRetry
	}

	start := time.Now()
	var lastObs domain.ToolObservation
	attempts := 0

	retry.Do(ctx, cfg, func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := b.transport.Call(callCtx, call.Tool, call.Args, timeout, call.IdempotencyKey)
		if err == nil {
			breaker.RecordSuccess()
			lastObs = domain.ToolObservation{Tool: call.Tool, OK: true, Result: res, Attempts: attempts}
			return nil
		}

		breaker.RecordFailure()
		kind := classify(err)
		lastObs = domain.ToolObservation{Tool: call.Tool, OK: false, Result: map[string]any{}, ErrorKind: kind, Attempts: attempts}

		// Reads retry on any transient or timeout outcome. Writes only get
		// their one extra attempt on a timeout (spec §4.7: "timeout with no
		// correlation id") — a 5xx with a definite response must not be
		// blindly retried just because the idempotency key would mitigate a
		// double-execution; anything else (permanent, policy_denied) must
		// not be retried at all.
		if call.Entry.Policy.Write {
			if kind != domain.ErrorKindTimeout {
				return retry.Permanent(err)
			}
			return err
		}
		if kind != domain.ErrorKindTransient && kind != domain.ErrorKindTimeout {
			return retry.Permanent(err)
		}
		return err
	})

	lastObs.Attempts = attempts
	lastObs.LatencyMS = time.Since(start).Milliseconds()
	return lastObs
}
