// Package observability provides comprehensive monitoring and debugging
// capabilities for the decision orchestrator through metrics, structured
// logging, and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Pipeline stage latency (C0-C9) and end-to-end decide() duration
//   - SLM vs Legacy route split and soft-budget overruns
//   - LLM backend request latency and token usage
//   - Tool Broker execution outcomes, circuit-breaker state, idempotency
//     cache hits
//   - Policy Engine rate-limit rejections
//   - Error rates by component and type
//   - Decision API HTTP request/response metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	defer prometheus.Handler() // Expose metrics endpoint
//
//	// Track a pipeline stage
//	metrics.RecordStage("extractor", time.Since(start).Seconds())
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-5-haiku-latest", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("book_appointment", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request/workspace/conversation ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens, email, phone)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddWorkspaceID(ctx, workspaceID)
//	ctx = observability.AddConversationID(ctx, conversationID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "decide() stage completed",
//	    "stage", "extractor",
//	    "intent", intent,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "LLM request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a decide() call across
// pipeline stages:
//   - One root span per /orchestrator/decide request
//   - Child spans for each stage (C4-C9) and each Tool Broker call
//   - Performance bottleneck identification against the 1500ms soft budget
//   - Error correlation across stages
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "decision-orchestrator",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a decide() call
//	ctx, span := tracer.TraceDecide(ctx, workspaceID, conversationID, "slm")
//	defer span.End()
//
//	// Trace LLM requests
//	ctx, llmSpan := tracer.TraceLLMRequest(ctx, "anthropic", "claude-3-5-haiku-latest")
//	defer llmSpan.End()
//	tracer.SetAttributes(llmSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "book_appointment")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddWorkspaceID(ctx, "ws-789")
//	ctx = observability.AddConversationID(ctx, "conv-456")
//	ctx = observability.AddChannel(ctx, "whatsapp")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "Processing") // Includes request_id, workspace_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating all three components around a single stage:
//
//	func RunExtractor(ctx context.Context, snap domain.Snapshot) domain.ExtractorOutput {
//	    ctx = observability.AddWorkspaceID(ctx, snap.WorkspaceID)
//	    ctx = observability.AddConversationID(ctx, snap.ConversationID)
//
//	    ctx, span := tracer.TraceStage(ctx, "extractor")
//	    defer span.End()
//
//	    start := time.Now()
//	    out := extractor.Extract(ctx, snap.Message, snap.State.Slots, snap.Context.Vertical)
//	    duration := time.Since(start).Seconds()
//
//	    metrics.RecordStage("extractor", duration)
//	    logger.Info(ctx, "extractor completed", "intent", out.Intent, "confidence", out.Confidence)
//	    return out
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Email addresses and phone numbers in user-supplied text/slots
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "decision-orchestrator",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# decide() throughput by route
//	rate(orchestrator_decide_total[5m])
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(orchestrator_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(orchestrator_errors_total[5m])
//
//	# Soft budget overrun rate
//	rate(orchestrator_decide_total{budget_exceeded="true"}[5m])
//
//	# Tool execution time
//	rate(orchestrator_tool_execution_duration_seconds_sum[5m]) /
//	rate(orchestrator_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: orchestrator_errors_total > threshold
//   - High LLM latency: p95 latency > 5s
//   - Budget overrun rate: rate(orchestrator_decide_total{budget_exceeded="true"}) > threshold
//   - Circuit breakers stuck open: orchestrator_circuit_breaker_state == 1 for > cooldown
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
