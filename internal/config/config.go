// Package config provides configuration management for the floor plan orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	LLM          LLMConfig
	Orchestrator OrchestratorConfig
	JobStore     JobStoreConfig
	Models       ModelRoutingConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
	// Trace enables a second, high-throughput zerolog sink for the
	// orchestrator's per-iteration validator/score events, layered under the
	// slog-based facade rather than replacing it.
	Trace bool
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider   string // "openai" (the only built-in provider)
	APIKey     string
	BaseURL    string
	OrgID      string
	CallDeadline time.Duration
}

// OrchestratorConfig holds orchestration loop tuning.
type OrchestratorConfig struct {
	MaxIterations         int
	ConvergenceThreshold  float64
	RunDeadline           time.Duration
	EnableFurnitureAgent  bool
}

// JobStoreConfig holds in-memory job store bounds.
type JobStoreConfig struct {
	MaxSessions int
	TTL         time.Duration
}

// ModelRoutingConfig allows environment overrides of the per-role model table.
type ModelRoutingConfig struct {
	Input       string
	Spatial     string
	Critic      string
	Refinement  string
	Cost        string
	Furniture   string
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("FLOORPLAN_PORT", 8585),
			Host:            getEnv("FLOORPLAN_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("FLOORPLAN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("FLOORPLAN_WRITE_TIMEOUT", 0), // 0: SSE streams must not be write-timed-out
			ShutdownTimeout: getEnvAsDuration("FLOORPLAN_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORS:            getEnvAsBool("FLOORPLAN_CORS_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("FLOORPLAN_LOG_LEVEL", "info"),
			Format: getEnv("FLOORPLAN_LOG_FORMAT", "json"),
			Trace:  getEnvAsBool("FLOORPLAN_LOG_TRACE", false),
		},
		LLM: LLMConfig{
			Provider:     getEnv("FLOORPLAN_LLM_PROVIDER", "openai"),
			APIKey:       getEnv("FLOORPLAN_LLM_API_KEY", ""),
			BaseURL:      getEnv("FLOORPLAN_LLM_BASE_URL", ""),
			OrgID:        getEnv("FLOORPLAN_LLM_ORG_ID", ""),
			CallDeadline: getEnvAsDuration("FLOORPLAN_LLM_CALL_DEADLINE", 120*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:        getEnvAsInt("FLOORPLAN_MAX_ITERATIONS", 3),
			ConvergenceThreshold: getEnvAsFloat("FLOORPLAN_CONVERGENCE_THRESHOLD", 0.70),
			RunDeadline:          getEnvAsDuration("FLOORPLAN_RUN_DEADLINE", 10*time.Minute),
			EnableFurnitureAgent: getEnvAsBool("FLOORPLAN_ENABLE_FURNITURE_AGENT", true),
		},
		JobStore: JobStoreConfig{
			MaxSessions: getEnvAsInt("FLOORPLAN_MAX_SESSIONS", 1000),
			TTL:         getEnvAsDuration("FLOORPLAN_JOB_TTL", 30*time.Minute),
		},
		Models: ModelRoutingConfig{
			Input:      getEnv("FLOORPLAN_MODEL_INPUT", ""),
			Spatial:    getEnv("FLOORPLAN_MODEL_SPATIAL", ""),
			Critic:     getEnv("FLOORPLAN_MODEL_CRITIC", ""),
			Refinement: getEnv("FLOORPLAN_MODEL_REFINEMENT", ""),
			Cost:       getEnv("FLOORPLAN_MODEL_COST", ""),
			Furniture:  getEnv("FLOORPLAN_MODEL_FURNITURE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. The LLM API key is the one required
// credential; its absence must fail fast at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("FLOORPLAN_LLM_API_KEY is required")
	}
	if c.LLM.Provider != "openai" {
		return fmt.Errorf("unsupported FLOORPLAN_LLM_PROVIDER: %s", c.LLM.Provider)
	}

	if c.Orchestrator.MaxIterations < 1 {
		return fmt.Errorf("FLOORPLAN_MAX_ITERATIONS must be at least 1")
	}
	if c.Orchestrator.ConvergenceThreshold < 0 || c.Orchestrator.ConvergenceThreshold > 1 {
		return fmt.Errorf("FLOORPLAN_CONVERGENCE_THRESHOLD must be in [0,1]")
	}

	if c.JobStore.MaxSessions < 1 {
		return fmt.Errorf("FLOORPLAN_MAX_SESSIONS must be at least 1")
	}

	return nil
}

// Helper functions for environment variables.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
