// Package policyengine implements the Policy Engine stage (C6): manifest
// resolution, argument injection, rate limiting and idempotency-key
// computation for a planned tool call.
package policyengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
	"github.com/nictes1/decision-orchestrator/internal/ratelimit"
)

// AdvisoryKind enumerates the PolicyError taxonomy (spec §4.6, §7).
type AdvisoryKind string

const (
	AdvisoryUnknownTool AdvisoryKind = "unknown_tool"
	AdvisoryMissingArgs AdvisoryKind = "missing_args"
	AdvisoryRateLimited AdvisoryKind = "rate_limited"
)

// Advisory reports a single call that was rejected or altered by policy. It
// never aborts the pipeline (spec §7: "advisory in telemetry and omission of
// the offending call").
type Advisory struct {
	Tool string       `json:"tool"`
	Kind AdvisoryKind `json:"kind"`
	Note string       `json:"note,omitempty"`
}

// Resolver looks up a workspace's manifest entry for a tool name. It is
// satisfied by *manifest.Cache.
type Resolver interface {
	Lookup(ctx context.Context, workspaceID, tool string) (domain.ManifestEntry, bool, error)
}

// Engine runs the Policy Engine stage over a planner-produced plan.
type Engine struct {
	resolver Resolver

	defaultRPS   float64
	defaultBurst int

	mu      sync.Mutex
	buckets map[string]*ratelimit.Bucket
}

// New builds an Engine backed by resolver, rate-limiting with the
// ratelimit package's default requests-per-second/burst.
func New(resolver Resolver) *Engine {
	d := ratelimit.DefaultConfig()
	return NewWithRateLimit(resolver, d.RequestsPerSecond, d.BurstSize)
}

// NewWithRateLimit builds an Engine whose per-(workspace,tool) token bucket
// falls back to defaultRPS/defaultBurst when a manifest entry doesn't
// declare its own MaxRPSPerWorkspace (spec §6:
// POLICY_DEFAULT_MAX_RPS_PER_WORKSPACE, POLICY_DEFAULT_BURST).
func NewWithRateLimit(resolver Resolver, defaultRPS float64, defaultBurst int) *Engine {
	return &Engine{
		resolver:     resolver,
		defaultRPS:   defaultRPS,
		defaultBurst: defaultBurst,
		buckets:      make(map[string]*ratelimit.Bucket),
	}
}

// Sanitize applies the four policy steps of spec §4.6 in order to every call
// in plan, returning the sanitised plan (length ≤ len(plan)) and the
// advisories raised along the way. workspaceID/conversationID are used for
// argument injection and idempotency-key derivation. slots is the current
// conversation's slot state (spec §4.6 step 2: "inject any argument
// available in slots"); it fills a call's missing arguments regardless of
// whether the plan came from the deterministic table or the LLM planner.
func (e *Engine) Sanitize(ctx context.Context, workspaceID, conversationID string, plan []domain.ToolCall, slots map[string]string) ([]domain.ToolCall, []string, []Advisory) {
	sanitized := make([]domain.ToolCall, 0, len(plan))
	idempotencyKeys := make([]string, 0, len(plan))
	var advisories []Advisory

	for _, call := range plan {
		entry, found, err := e.resolver.Lookup(ctx, workspaceID, call.Tool)
		if err != nil || !found {
			advisories = append(advisories, Advisory{Tool: call.Tool, Kind: AdvisoryUnknownTool})
			continue
		}

		args, ok := injectArgs(call.Args, entry, workspaceID, slots)
		if !ok {
			advisories = append(advisories, Advisory{Tool: call.Tool, Kind: AdvisoryMissingArgs,
				Note: "missing required argument after slot/workspace injection"})
			continue
		}

		if !e.allow(workspaceID, call.Tool, entry.Policy.MaxRPSPerWorkspace) {
			advisories = append(advisories, Advisory{Tool: call.Tool, Kind: AdvisoryRateLimited})
			continue
		}

		var key string
		if entry.Policy.Write {
			key = idempotencyKey(workspaceID, conversationID, call.Tool, args)
		}

		sanitized = append(sanitized, domain.ToolCall{Tool: call.Tool, Args: args})
		idempotencyKeys = append(idempotencyKeys, key)
	}

	return sanitized, idempotencyKeys, advisories
}

// injectArgs fills in any argument the call omitted but the manifest
// declares, first from slots and then, if the tool requires it, the
// workspace_id. ok is false if a required argument remains unset after
// injection.
func injectArgs(callArgs map[string]any, entry domain.ManifestEntry, workspaceID string, slots map[string]string) (map[string]any, bool) {
	args := make(map[string]any, len(callArgs)+1)
	for k, v := range callArgs {
		args[k] = v
	}
	for _, spec := range entry.ArgumentShape {
		if _, ok := args[spec.Name]; ok {
			continue
		}
		if v, ok := slots[spec.Name]; ok && v != "" {
			args[spec.Name] = v
		}
	}
	if entry.Policy.RequiresWorkspace {
		args["workspace_id"] = workspaceID
	}
	for _, spec := range entry.ArgumentShape {
		if _, ok := args[spec.Name]; !ok {
			return args, false
		}
	}
	return args, true
}

// allow checks the per-(workspace,tool) token bucket, lazily creating it
// with the manifest-declared rate the first time the pair is seen.
func (e *Engine) allow(workspaceID, tool string, maxRPS float64) bool {
	key := ratelimit.CompositeKey(workspaceID, tool)

	e.mu.Lock()
	bucket, ok := e.buckets[key]
	if !ok {
		cfg := ratelimit.Config{RequestsPerSecond: e.defaultRPS, BurstSize: e.defaultBurst}
		if maxRPS > 0 {
			cfg.RequestsPerSecond = maxRPS
			cfg.BurstSize = int(maxRPS * 2)
		}
		bucket = ratelimit.NewBucket(cfg)
		e.buckets[key] = bucket
	}
	e.mu.Unlock()

	return bucket.Allow()
}

// idempotencyKey computes stable_hash(workspace_id || conversation_id ||
// tool || canonical_json(args)) per spec §4.6 step 4.
func idempotencyKey(workspaceID, conversationID, tool string, args map[string]any) string {
	canonical := canonicalJSON(args)
	h := sha256.New()
	fmt.Fprintf(h, "%s||%s||%s||%s", workspaceID, conversationID, tool, canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON marshals m with keys sorted, so equal argument sets always
// hash identically regardless of map iteration order.
func canonicalJSON(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		K string `json:"k"`
		V any    `json:"v"`
	}, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, struct {
			K string `json:"k"`
			V any    `json:"v"`
		}{K: k, V: m[k]})
	}
	b, _ := json.Marshal(ordered)
	return string(b)
}
