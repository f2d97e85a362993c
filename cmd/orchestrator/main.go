// Command orchestrator runs the Decision API: schema registry, LLM client,
// manifest cache, policy engine, tool broker, both orchestrators, and the
// gin-based HTTP server, wired from internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nictes1/decision-orchestrator/internal/api"
	"github.com/nictes1/decision-orchestrator/internal/config"
	"github.com/nictes1/decision-orchestrator/internal/observability"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/activation"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/broker"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/canary"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/collaborator"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/extractor"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/llm"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/manifest"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/manifestsource"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/pipeline"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/planner"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/policyengine"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/schema"
	"github.com/nictes1/decision-orchestrator/internal/rag"
)

func main() {
	if err := run(); err != nil {
		slog.Error("orchestrator exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ORCHESTRATOR_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	_, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "decision-orchestrator",
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	// Registers the orchestrator_* collectors against the default
	// registry; the Decision API serves them at GET /metrics.
	observability.NewMetrics()

	registry := schema.Default()
	if err := registry.MustLoad(); err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	llmClient := buildLLMClient(cfg, registry)

	collaboratorURL := os.Getenv("COLLABORATOR_BASE_URL")
	if collaboratorURL == "" {
		collaboratorURL = "http://localhost:9000"
	}
	ragStore := rag.New()
	transport := collaborator.NewHTTPTransport(collaboratorURL, ragStore)

	manifestCache := manifest.New(manifestsource.NewHTTPSource(collaboratorURL), manifest.DefaultTTL)

	toolBroker := buildBroker(cfg, transport)
	policyEngine := policyengine.NewWithRateLimit(manifestCache, cfg.Policy.DefaultMaxRPSPerWorkspace, cfg.Policy.DefaultBurst)

	deps := pipeline.Deps{
		Extractor: extractor.New(llmClient),
		Planner:   planner.New(llmClient),
		Policy:    policyEngine,
		Manifest:  manifestCache,
		Broker:    toolBroker,
		Budget:    cfg.Pipeline.TotalBudget,
	}

	legacyDeps := deps
	legacyDeps.Planner = planner.New(nil)

	slmOrchestrator := pipeline.NewSLM(deps)
	legacyOrchestrator := pipeline.NewLegacy(legacyDeps)

	settingsSource := func() canary.Settings {
		return canary.Settings{
			EnableSLMPipeline: cfg.Canary.EnableSLMPipeline,
			SLMCanaryPercent:  cfg.Canary.SLMCanaryPercent,
		}
	}

	gate := activation.New(activation.NewMemoryStore())
	server := api.New(slmOrchestrator, legacyOrchestrator, settingsSource, gate)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info(context.Background(), "orchestrator listening", "addr", addr)
	return serveWithGracefulShutdown(httpServer, logger)
}

// buildLLMClient wires the primary/fallback LLM backends per cfg.LLM.
// Anthropic is primary, OpenAI is the fallback, matching the teacher's
// failover pattern of "try the cheaper/faster backend, fall back on error".
func buildLLMClient(cfg *config.Config, registry *schema.Registry) *llm.Client {
	var primary, fallback llm.Backend

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	if cfg.LLM.Provider == "openai" {
		if openaiKey != "" {
			primary = llm.NewOpenAIBackend(llm.OpenAIConfig{APIKey: openaiKey, Model: cfg.LLM.Model, RequestTimeout: cfg.LLM.RequestTimeout})
		}
		if anthropicKey != "" {
			fallback = llm.NewAnthropicBackend(llm.AnthropicConfig{APIKey: anthropicKey, Model: cfg.LLM.FallbackModel, RequestTimeout: cfg.LLM.RequestTimeout})
		}
	} else {
		if anthropicKey != "" {
			primary = llm.NewAnthropicBackend(llm.AnthropicConfig{APIKey: anthropicKey, Model: cfg.LLM.Model, RequestTimeout: cfg.LLM.RequestTimeout})
		}
		if openaiKey != "" {
			fallback = llm.NewOpenAIBackend(llm.OpenAIConfig{APIKey: openaiKey, Model: cfg.LLM.FallbackModel, RequestTimeout: cfg.LLM.RequestTimeout})
		}
	}
	if primary == nil {
		primary = fallback
		fallback = nil
	}

	return llm.New(registry, primary, fallback)
}

// buildBroker selects the idempotency backend (memory or Redis) per
// cfg.Broker.IdempotencyBackend before constructing the Tool Broker, threading
// BROKER_DEFAULT_TIMEOUT_MS, BROKER_MAX_RETRIES and CIRCUIT_OPEN_COOLDOWN_MS
// into it (spec §6).
func buildBroker(cfg *config.Config, transport broker.Transport) *broker.Broker {
	cooldown := cfg.Circuit.OpenCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	brokerCfg := broker.Config{
		DefaultTimeout: cfg.Broker.DefaultTimeout,
		MaxRetries:     cfg.Broker.MaxRetries,
		Cooldown:       cooldown,
	}

	if cfg.Broker.IdempotencyBackend != "redis" {
		return broker.NewWithConfig(transport, brokerCfg, nil)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Broker.RedisAddr})
	backend := broker.NewRedisIdempotencyBackend(client, "orchestrator:idem:")
	return broker.NewWithConfig(transport, brokerCfg, backend)
}

// serveWithGracefulShutdown runs srv until SIGINT/SIGTERM, then drains
// in-flight requests for up to 10s before returning.
func serveWithGracefulShutdown(srv *http.Server, logger *observability.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-stop:
		logger.Info(context.Background(), "shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
