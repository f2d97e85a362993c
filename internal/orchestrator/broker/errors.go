package broker

import (
	"fmt"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// ToolError is the richer structured failure a Transport may return, beyond
// the bare error_kind enum carried on the wire (spec §7, supplemented per
// the teacher's own ToolError{Type,Message,Cause} shape). Cause is kept for
// logs only and never serialised into an Observation.
type ToolError struct {
	Kind    domain.ErrorKind
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("tool error (%s): %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// classify maps an arbitrary transport error to an ErrorKind, defaulting to
// transient (retryable) when the transport didn't already classify it.
func classify(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	if te, ok := err.(*ToolError); ok {
		return te.Kind
	}
	return domain.ErrorKindTransient
}
