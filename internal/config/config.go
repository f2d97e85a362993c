// Package config loads and overlays the orchestrator's runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the orchestrator's full runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	LLM     LLMConfig     `yaml:"llm"`
	Canary  CanaryConfig  `yaml:"canary"`
	Broker  BrokerConfig  `yaml:"broker"`
	Circuit CircuitConfig `yaml:"circuit"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Policy  PolicyConfig  `yaml:"policy"`
}

// ServerConfig configures the Decision API's listening sockets.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig configures the LLM Client's backend and timeouts.
type LLMConfig struct {
	Provider       string        `yaml:"provider"` // "anthropic" or "openai"
	Model          string        `yaml:"model"`
	FallbackModel  string        `yaml:"fallback_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CanaryConfig controls the SLM/Legacy traffic split (spec §6, §9).
type CanaryConfig struct {
	// EnableSLMPipeline is the kill-switch. When false, 100% of traffic
	// routes to the Legacy orchestrator regardless of SLMCanaryPercent.
	EnableSLMPipeline bool `yaml:"enable_slm_pipeline"`
	// SLMCanaryPercent is the integer percentage (0-100) of conversations
	// bucketed into the SLM pipeline.
	SLMCanaryPercent int `yaml:"slm_canary_percent"`
}

// BrokerConfig controls the Tool Broker's default call behavior.
type BrokerConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	// IdempotencyBackend selects the Tool Broker's write-dedup store:
	// "memory" (default, in-process only) or "redis" (shared across
	// replicas, see RedisAddr).
	IdempotencyBackend string `yaml:"idempotency_backend"`
	RedisAddr          string `yaml:"redis_addr"`
}

// CircuitConfig controls per-(workspace,tool) circuit breaker cooldown.
type CircuitConfig struct {
	OpenCooldown time.Duration `yaml:"open_cooldown"`
}

// PipelineConfig controls the end-to-end decide() soft budget.
type PipelineConfig struct {
	TotalBudget time.Duration `yaml:"total_budget"`
}

// PolicyConfig controls the Policy Engine's rate limiting defaults.
type PolicyConfig struct {
	DefaultMaxRPSPerWorkspace float64 `yaml:"default_max_rps_per_workspace"`
	DefaultBurst              int     `yaml:"default_burst"`
}

// Default returns the configuration baseline matching spec §6's documented
// defaults, before any file or environment overlay is applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8080,
			MetricsPort: 9090,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "claude-3-5-haiku-latest",
			FallbackModel:  "gpt-4o-mini",
			RequestTimeout: 2 * time.Second,
		},
		Canary: CanaryConfig{
			EnableSLMPipeline: false,
			SLMCanaryPercent:  0,
		},
		Broker: BrokerConfig{
			DefaultTimeout:     2 * time.Second,
			MaxRetries:         2,
			IdempotencyBackend: "memory",
			RedisAddr:          "localhost:6379",
		},
		Circuit: CircuitConfig{
			OpenCooldown: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			TotalBudget: 1500 * time.Millisecond,
		},
		Policy: PolicyConfig{
			DefaultMaxRPSPerWorkspace: 5,
			DefaultBurst:              10,
		},
	}
}

// Load reads path (if non-empty) and overlays the explicit environment
// variables spec §6 documents, starting from Default(). path may be empty,
// in which case only the environment overlay applies.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		decoded, err := decodeRawConfig(raw)
		if err != nil {
			return nil, err
		}
		cfg = mergeFileConfig(cfg, *decoded)
	}
	applyEnvOverlay(&cfg)
	return &cfg, nil
}

// mergeFileConfig lets zero-valued fields in decoded fall back to defaults,
// so a partial config file never blanks out the rest of the baseline.
func mergeFileConfig(defaults, decoded Config) Config {
	out := defaults
	if decoded.Server.Host != "" {
		out.Server.Host = decoded.Server.Host
	}
	if decoded.Server.HTTPPort != 0 {
		out.Server.HTTPPort = decoded.Server.HTTPPort
	}
	if decoded.Server.MetricsPort != 0 {
		out.Server.MetricsPort = decoded.Server.MetricsPort
	}
	if decoded.Logging.Level != "" {
		out.Logging.Level = decoded.Logging.Level
	}
	if decoded.Logging.Format != "" {
		out.Logging.Format = decoded.Logging.Format
	}
	if decoded.LLM.Provider != "" {
		out.LLM.Provider = decoded.LLM.Provider
	}
	if decoded.LLM.Model != "" {
		out.LLM.Model = decoded.LLM.Model
	}
	if decoded.LLM.FallbackModel != "" {
		out.LLM.FallbackModel = decoded.LLM.FallbackModel
	}
	if decoded.LLM.RequestTimeout != 0 {
		out.LLM.RequestTimeout = decoded.LLM.RequestTimeout
	}
	out.Canary.EnableSLMPipeline = decoded.Canary.EnableSLMPipeline || out.Canary.EnableSLMPipeline
	if decoded.Canary.SLMCanaryPercent != 0 {
		out.Canary.SLMCanaryPercent = decoded.Canary.SLMCanaryPercent
	}
	if decoded.Broker.DefaultTimeout != 0 {
		out.Broker.DefaultTimeout = decoded.Broker.DefaultTimeout
	}
	if decoded.Broker.MaxRetries != 0 {
		out.Broker.MaxRetries = decoded.Broker.MaxRetries
	}
	if decoded.Broker.IdempotencyBackend != "" {
		out.Broker.IdempotencyBackend = decoded.Broker.IdempotencyBackend
	}
	if decoded.Broker.RedisAddr != "" {
		out.Broker.RedisAddr = decoded.Broker.RedisAddr
	}
	if decoded.Circuit.OpenCooldown != 0 {
		out.Circuit.OpenCooldown = decoded.Circuit.OpenCooldown
	}
	if decoded.Pipeline.TotalBudget != 0 {
		out.Pipeline.TotalBudget = decoded.Pipeline.TotalBudget
	}
	if decoded.Policy.DefaultMaxRPSPerWorkspace != 0 {
		out.Policy.DefaultMaxRPSPerWorkspace = decoded.Policy.DefaultMaxRPSPerWorkspace
	}
	if decoded.Policy.DefaultBurst != 0 {
		out.Policy.DefaultBurst = decoded.Policy.DefaultBurst
	}
	return out
}

// applyEnvOverlay applies the environment variables spec §6 names. These
// take precedence over both the baseline and the config file, matching the
// teacher's env-wins-over-file convention.
func applyEnvOverlay(cfg *Config) {
	if v, ok := os.LookupEnv("ENABLE_SLM_PIPELINE"); ok {
		cfg.Canary.EnableSLMPipeline = parseBoolEnv(v, cfg.Canary.EnableSLMPipeline)
	}
	if v, ok := os.LookupEnv("SLM_CANARY_PERCENT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Canary.SLMCanaryPercent = clampPercent(n)
		}
	}
	if v, ok := os.LookupEnv("BROKER_DEFAULT_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.Broker.DefaultTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("BROKER_MAX_RETRIES"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.Broker.MaxRetries = n
		}
	}
	if v, ok := os.LookupEnv("IDEMPOTENCY_BACKEND"); ok && strings.TrimSpace(v) != "" {
		cfg.Broker.IdempotencyBackend = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok && strings.TrimSpace(v) != "" {
		cfg.Broker.RedisAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CIRCUIT_OPEN_COOLDOWN_MS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.Circuit.OpenCooldown = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("PIPELINE_TOTAL_BUDGET_MS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.Pipeline.TotalBudget = time.Duration(n) * time.Millisecond
		}
	}
}

func parseBoolEnv(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
