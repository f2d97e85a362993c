package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting orchestrator
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Pipeline stage latency (C0-C9) and end-to-end decide() duration
//   - SLM vs Legacy route split and budget overruns
//   - LLM request performance and token usage
//   - Tool Broker execution outcomes, circuit-breaker state, idempotency
//     cache hits
//   - Policy Engine rate-limit rejections
//   - Decision API HTTP request latency
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordStage("extractor", time.Since(start).Seconds())
//	defer metrics.RecordDecide(string(route), time.Since(start).Seconds(), budgetExceeded)
type Metrics struct {
	// StageLatency measures per-stage duration in seconds.
	// Labels: stage (activation|extractor|planner|policy|broker|reducer|nlg)
	// Buckets: 0.01s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 1.5s, 3s
	StageLatency *prometheus.HistogramVec

	// DecideDuration measures end-to-end /orchestrator/decide latency.
	// Labels: route (slm|legacy)
	// Buckets: 0.1s, 0.25s, 0.5s, 1s, 1.5s, 2s, 3s, 5s
	DecideDuration *prometheus.HistogramVec

	// DecideCounter counts completed decide() calls by route and whether
	// the soft budget (spec §4.12, 1500ms) was exceeded.
	// Labels: route, budget_exceeded (true|false)
	DecideCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM backend call latency in seconds.
	// Labels: provider (anthropic|openai), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider, model and outcome.
	// Labels: provider, model, status (success|invalid_json|timeout|transport)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts Tool Broker invocations.
	// Labels: tool_name, status (success|transient|permanent|circuit_open|policy_denied)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool call latency in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// IdempotencyCacheHits counts replayed write observations served from
	// the Tool Broker's idempotency cache instead of re-invoking the tool.
	// Labels: tool_name
	IdempotencyCacheHits *prometheus.CounterVec

	// CircuitBreakerState is a gauge of the current breaker state per
	// (workspace, tool): 0=closed, 1=open, 2=half_open.
	// Labels: workspace_id, tool_name
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerTrips counts transitions into the open state.
	// Labels: workspace_id, tool_name
	CircuitBreakerTrips *prometheus.CounterVec

	// RateLimitRejections counts Policy Engine token-bucket rejections.
	// Labels: workspace_id, tool_name
	RateLimitRejections *prometheus.CounterVec

	// CanaryRouteCounter counts conversations routed by the Canary Router.
	// Labels: route (slm|legacy)
	CanaryRouteCounter *prometheus.CounterVec

	// ActivationGateDrops counts messages dropped by the Activation Gate
	// (unaddressed group messages, per C0).
	// Labels: workspace_id
	ActivationGateDrops *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec

	// HTTPRequestDuration measures Decision API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts Decision API requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_stage_duration_seconds",
				Help:    "Duration of a single pipeline stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 3},
			},
			[]string{"stage"},
		),

		DecideDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_decide_duration_seconds",
				Help:    "End-to-end /orchestrator/decide latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
			},
			[]string{"route"},
		),

		DecideCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_decide_total",
				Help: "Total number of decide() calls by route and budget status",
			},
			[]string{"route", "budget_exceeded"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_llm_request_duration_seconds",
				Help:    "Duration of LLM backend requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tool_executions_total",
				Help: "Total number of Tool Broker executions by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.8, 2, 5},
			},
			[]string{"tool_name"},
		),

		IdempotencyCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_idempotency_cache_hits_total",
				Help: "Total number of write calls replayed from the idempotency cache",
			},
			[]string{"tool_name"},
		),

		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_circuit_breaker_state",
				Help: "Current circuit breaker state per workspace/tool (0=closed, 1=open, 2=half_open)",
			},
			[]string{"workspace_id", "tool_name"},
		),

		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_circuit_breaker_trips_total",
				Help: "Total number of transitions into the open circuit state",
			},
			[]string{"workspace_id", "tool_name"},
		),

		RateLimitRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_rate_limit_rejections_total",
				Help: "Total number of Policy Engine token-bucket rejections",
			},
			[]string{"workspace_id", "tool_name"},
		),

		CanaryRouteCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_canary_route_total",
				Help: "Total number of conversations routed by the Canary Router",
			},
			[]string{"route"},
		),

		ActivationGateDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_activation_gate_drops_total",
				Help: "Total number of unaddressed group messages dropped by the Activation Gate",
			},
			[]string{"workspace_id"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "Duration of Decision API HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of Decision API HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordStage records one pipeline stage's duration.
//
// Example:
//
//	metrics.RecordStage("extractor", time.Since(start).Seconds())
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	m.StageLatency.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordDecide records one completed decide() call.
//
// Example:
//
//	metrics.RecordDecide("slm", time.Since(start).Seconds(), telemetry.BudgetExceeded)
func (m *Metrics) RecordDecide(route string, durationSeconds float64, budgetExceeded bool) {
	m.DecideDuration.WithLabelValues(route).Observe(durationSeconds)
	m.DecideCounter.WithLabelValues(route, boolLabel(budgetExceeded)).Inc()
}

// RecordLLMRequest records metrics for an LLM backend request.
//
// Example:
//
//	metrics.RecordLLMRequest("anthropic", "claude-3-5-haiku-latest", "success", 0.42, 120, 60)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for one Tool Broker call.
//
// Example:
//
//	metrics.RecordToolExecution("book_appointment", "success", 0.18)
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordIdempotencyHit records a write call replayed from the idempotency
// cache instead of re-invoking the tool.
func (m *Metrics) RecordIdempotencyHit(toolName string) {
	m.IdempotencyCacheHits.WithLabelValues(toolName).Inc()
}

// SetCircuitState records the current breaker state for a workspace/tool
// pair. state must be one of 0 (closed), 1 (open), 2 (half_open).
func (m *Metrics) SetCircuitState(workspaceID, toolName string, state float64) {
	m.CircuitBreakerState.WithLabelValues(workspaceID, toolName).Set(state)
}

// RecordCircuitTrip records a transition into the open state.
func (m *Metrics) RecordCircuitTrip(workspaceID, toolName string) {
	m.CircuitBreakerTrips.WithLabelValues(workspaceID, toolName).Inc()
}

// RecordRateLimitRejection records a Policy Engine token-bucket rejection.
func (m *Metrics) RecordRateLimitRejection(workspaceID, toolName string) {
	m.RateLimitRejections.WithLabelValues(workspaceID, toolName).Inc()
}

// RecordCanaryRoute records which orchestrator a conversation was routed to.
func (m *Metrics) RecordCanaryRoute(route string) {
	m.CanaryRouteCounter.WithLabelValues(route).Inc()
}

// RecordActivationGateDrop records an unaddressed group message dropped by
// the Activation Gate before any pipeline stage ran.
func (m *Metrics) RecordActivationGateDrop(workspaceID string) {
	m.ActivationGateDrops.WithLabelValues(workspaceID).Inc()
}

// RecordError increments the error counter for a given component and error
// type.
//
// Example:
//
//	metrics.RecordError("broker", "transient")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records metrics for a Decision API HTTP request.
//
// Example:
//
//	metrics.RecordHTTPRequest("POST", "/orchestrator/decide", "200", 0.31)
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
