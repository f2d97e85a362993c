package schema

// extractorV1Schema is the JSON Schema for the Extractor stage's output.
const extractorV1Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "extractor_v1",
  "type": "object",
  "required": ["intent", "confidence", "slots"],
  "additionalProperties": false,
  "properties": {
    "intent": {
      "type": "string",
      "enum": ["greeting", "info_services", "info_prices", "info_hours", "book", "cancel", "reschedule", "chitchat", "other"]
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "slots": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "service_type": {"type": "string"},
        "preferred_date": {"type": "string"},
        "preferred_time": {"type": "string"},
        "client_name": {"type": "string"},
        "client_email": {"type": "string"},
        "client_phone": {"type": "string"},
        "staff_name": {"type": "string"},
        "booking_id": {"type": "string"}
      }
    }
  }
}`

// plannerV1Schema is the JSON Schema for the Planner stage's output.
const plannerV1Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "planner_v1",
  "type": "object",
  "required": ["tool_calls", "missing_slots"],
  "additionalProperties": false,
  "properties": {
    "tool_calls": {
      "type": "array",
      "maxItems": 3,
      "items": {
        "type": "object",
        "required": ["tool", "args"],
        "additionalProperties": false,
        "properties": {
          "tool": {"type": "string"},
          "args": {"type": "object"}
        }
      }
    },
    "missing_slots": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

// responseV1Schema is the JSON Schema for the Decision API's response
// contract (spec §3 Decision Response). It is used to self-check responses
// in tests, not to gate production traffic (the pipeline always emits a
// conformant value by construction).
const responseV1Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "response_v1",
  "type": "object",
  "required": ["assistant", "tool_calls", "patch", "telemetry"],
  "properties": {
    "assistant": {
      "type": "object",
      "required": ["text", "suggested_replies"],
      "properties": {
        "text": {"type": "string", "maxLength": 600},
        "suggested_replies": {"type": "array", "maxItems": 5, "items": {"type": "string"}}
      }
    },
    "tool_calls": {"type": "array", "maxItems": 3},
    "patch": {
      "type": "object",
      "required": ["set", "remove", "cache_invalidation_keys"],
      "properties": {
        "set": {"type": "object"},
        "remove": {"type": "array", "items": {"type": "string"}},
        "cache_invalidation_keys": {"type": "array", "items": {"type": "string"}}
      }
    },
    "telemetry": {
      "type": "object",
      "required": ["route", "intent", "confidence", "stage_ms", "total_ms"],
      "properties": {
        "route": {"type": "string", "enum": ["slm_pipeline", "legacy"]},
        "total_ms": {"type": "number"}
      }
    }
  }
}`
