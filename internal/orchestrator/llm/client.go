// Package llm provides the JSON-constrained oracle the Extractor and
// Planner stages call: generate_json(prompt, schema_name, timeout).
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/schema"
)

// ErrorKind enumerates LLMError's failure modes (spec §4.2, §7).
type ErrorKind string

const (
	ErrorKindInvalidJSON ErrorKind = "invalid_json"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindTransport   ErrorKind = "transport"
)

// Error is the structured failure generate_json surfaces after exhausting
// its single repair retry.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm error (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("llm error (%s)", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Backend is the minimal capability a concrete LLM provider exposes: take a
// prompt, a max token budget, and return raw text — JSON-extraction and
// schema validation happen one layer up, in Client, so every backend (and
// every test fake) shares the same retry/validate contract.
type Backend interface {
	Name() string
	CompleteText(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Client implements generate_json on top of a primary Backend and an
// optional fallback Backend, validating output against the Schema
// Registry and retrying once with a stricter reminder on a validation
// failure (spec §4.2).
type Client struct {
	registry *schema.Registry
	primary  Backend
	fallback Backend
	maxTokens int
}

// New builds a Client. fallback may be nil.
func New(registry *schema.Registry, primary, fallback Backend) *Client {
	return &Client{registry: registry, primary: primary, fallback: fallback, maxTokens: 1024}
}

// GenerateJSON calls the backend with prompt, enforcing JSON-only output
// validated against schemaName. On a validation failure it retries once
// with a stricter system reminder; a second failure returns an *Error.
// The call respects ctx's deadline; callers are expected to have already
// derived ctx from the stage's own budget (spec §4.2 "250 ms"/"200 ms").
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schemaName schema.Name) (any, error) {
	backend := c.primary
	if backend == nil {
		if c.fallback == nil {
			return nil, &Error{Kind: ErrorKindTransport, Cause: errors.New("no backend configured")}
		}
		backend = c.fallback
	}

	value, err := c.attempt(ctx, backend, prompt, schemaName, false)
	if err == nil {
		return value, nil
	}

	var lerr *Error
	if errors.As(err, &lerr) && lerr.Kind == ErrorKindInvalidJSON {
		value, retryErr := c.attempt(ctx, backend, prompt, schemaName, true)
		if retryErr == nil {
			return value, nil
		}
		err = retryErr
	}

	if c.fallback != nil && backend != c.fallback {
		if value, ferr := c.attempt(ctx, c.fallback, prompt, schemaName, false); ferr == nil {
			return value, nil
		}
	}
	return nil, err
}

func (c *Client) attempt(ctx context.Context, backend Backend, prompt string, schemaName schema.Name, repair bool) (any, error) {
	if ctx.Err() != nil {
		return nil, &Error{Kind: ErrorKindTimeout, Cause: ctx.Err()}
	}

	system := jsonOnlySystemPrompt(schemaName)
	if repair {
		system += "\nYour previous response did not parse as valid JSON matching the schema. Respond with ONLY the corrected JSON object, nothing else."
	}

	text, err := backend.CompleteText(ctx, system, prompt, c.maxTokens)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: ErrorKindTimeout, Cause: err}
		}
		return nil, &Error{Kind: ErrorKindTransport, Cause: err}
	}

	value, validationErrs := c.registry.ValidateJSON(schemaName, []byte(extractJSONObject(text)))
	if validationErrs != nil {
		return nil, &Error{Kind: ErrorKindInvalidJSON, Cause: validationErrs}
	}
	return value, nil
}

func jsonOnlySystemPrompt(schemaName schema.Name) string {
	return fmt.Sprintf("Respond with ONLY a single JSON object conforming to the %s schema. No prose, no markdown fences.", schemaName)
}

// extractJSONObject trims anything before the first '{' and after the last
// '}', tolerating a model that wraps its JSON in prose or markdown fences
// despite instructions.
func extractJSONObject(text string) string {
	start := -1
	end := -1
	for i, r := range text {
		if r == '{' && start == -1 {
			start = i
		}
		if r == '}' {
			end = i
		}
	}
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// WithStageBudget derives a context bounded by the given stage budget, never
// exceeding the parent's own deadline. Callers (Extractor: 250ms, Planner:
// 200ms) use this to build the ctx they pass to GenerateJSON.
func WithStageBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, budget)
}
