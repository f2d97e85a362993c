// Package schema compiles and validates the pipeline's JSON Schema contracts.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Name identifies a registered schema by its versioned filename suffix.
type Name string

const (
	ExtractorV1 Name = "extractor_v1"
	PlannerV1   Name = "planner_v1"
	ResponseV1  Name = "response_v1"
)

// ValidationError reports a single schema mismatch at path.
type ValidationError struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Expected, e.Got)
}

// ValidationErrors is the structured failure returned by Validate.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "schema validation failed"
	}
	return v[0].String()
}

// Registry loads JSON Schemas once at startup and serves read-only
// validation thereafter (spec §4.1 "read-only after init").
type Registry struct {
	once     sync.Once
	initErr  error
	schemas  map[Name]*jsonschema.Schema
	rawSpecs map[Name]string
}

// New builds a Registry from the given raw JSON Schema documents, keyed by
// schema name. Compilation is deferred to the first Validate/MustLoad call
// so construction itself cannot fail.
func New(rawSpecs map[Name]string) *Registry {
	return &Registry{rawSpecs: rawSpecs}
}

// Default returns a Registry preloaded with the pipeline's three built-in
// schemas (extractor_v1, planner_v1, response_v1).
func Default() *Registry {
	return New(map[Name]string{
		ExtractorV1: extractorV1Schema,
		PlannerV1:   plannerV1Schema,
		ResponseV1:  responseV1Schema,
	})
}

// MustLoad compiles every registered schema, returning a fatal error if any
// required schema is missing or malformed (spec §4.1: "the registry rejects
// startup if a required schema is missing or malformed").
func (r *Registry) MustLoad() error {
	r.once.Do(func() {
		compiled := make(map[Name]*jsonschema.Schema, len(r.rawSpecs))
		for name, raw := range r.rawSpecs {
			sch, err := jsonschema.CompileString(string(name)+".json", raw)
			if err != nil {
				r.initErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
			compiled[name] = sch
		}
		for _, required := range []Name{ExtractorV1, PlannerV1, ResponseV1} {
			if _, ok := compiled[required]; !ok {
				r.initErr = fmt.Errorf("schema %s: missing required schema", required)
				return
			}
		}
		r.schemas = compiled
	})
	return r.initErr
}

// Validate checks value against the named schema. value must already be
// decoded into Go's generic JSON representation (map[string]any, []any,
// string, float64, bool, nil) as produced by encoding/json.Unmarshal into
// `any`.
func (r *Registry) Validate(name Name, value any) ValidationErrors {
	if err := r.MustLoad(); err != nil {
		return ValidationErrors{{Path: "$", Expected: "compiled schema", Got: err.Error()}}
	}
	sch, ok := r.schemas[name]
	if !ok {
		return ValidationErrors{{Path: "$", Expected: "registered schema", Got: string(name) + " not found"}}
	}
	if err := sch.Validate(value); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

// ValidateJSON decodes raw JSON and validates it against the named schema in
// one step, returning the decoded value on success.
func (r *Registry) ValidateJSON(name Name, raw []byte) (any, ValidationErrors) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, ValidationErrors{{Path: "$", Expected: "valid json", Got: err.Error()}}
	}
	if errs := r.Validate(name, value); errs != nil {
		return nil, errs
	}
	return value, nil
}

func toValidationErrors(err error) ValidationErrors {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ValidationErrors{{Path: "$", Expected: "schema conformance", Got: err.Error()}}
	}
	var out ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, ValidationError{
				Path:     e.InstanceLocation,
				Expected: e.KeywordLocation,
				Got:      e.Message,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
