package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	apperrors "helix-navigator/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// LLM
	LLMBaseURL  string
	LLMAPIKey   string
	FastModelID string // cheap model for classification and extraction
	DeepModelID string // stronger model for formatting database results

	// Pipeline
	MemoryWindow       int           // max turns kept per session
	StageTimeout       time.Duration // per network call
	ConversationMemory bool
	ChainOfThought     bool

	// Evaluation
	BenchmarkPath string
	ReportPath    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		Neo4jURI:           getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", "password"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		FastModelID:        getEnv("FAST_MODEL_ID", "claude-3-haiku-20240307"),
		DeepModelID:        getEnv("DEEP_MODEL_ID", "claude-sonnet-4-20250514"),
		MemoryWindow:       getEnvInt("MEMORY_WINDOW", 5),
		StageTimeout:       time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 30)) * time.Second,
		ConversationMemory: getEnvBool("CONVERSATION_MEMORY", true),
		ChainOfThought:     getEnvBool("CHAIN_OF_THOUGHT", false),
		BenchmarkPath:      getEnv("BENCHMARK_PATH", "evaluation/golden_dataset.json"),
		ReportPath:         getEnv("REPORT_PATH", "evaluation/evaluation_results.txt"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"NEO4J_URI", c.Neo4jURI},
		{"NEO4J_USER", c.Neo4jUser},
		{"NEO4J_PASSWORD", c.Neo4jPassword},
		{"LLM_BASE_URL", c.LLMBaseURL},
		{"FAST_MODEL_ID", c.FastModelID},
		{"DEEP_MODEL_ID", c.DeepModelID},
	}
	for _, r := range required {
		if r.value == "" {
			return apperrors.NewConfigMissingRequired(r.field)
		}
	}
	if c.MemoryWindow < 1 {
		return apperrors.NewBaseError(apperrors.ErrorTypeConfig, "MEMORY_WINDOW must be at least 1", nil)
	}
	// LLM API key is optional for local gateways
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
