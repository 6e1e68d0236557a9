// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Browser providers.
const (
	ProviderBrowserbase = "browserbase"
	ProviderLocal       = "local"
)

// DefaultAgentInstructions is the system prompt given to the browser agent.
const DefaultAgentInstructions = "Você é um assistente que executa tarefas no navegador."

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string // empty disables the gRPC health server
	Provider    string
	Credentials Credentials
	Browserbase BrowserbaseConfig
	Agent       AgentConfig
	Execution   ExecutionConfig
	Local       LocalBrowserConfig
	History     HistoryConfig
}

// BrowserbaseConfig configures the hosted session provider.
type BrowserbaseConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AgentConfig configures the LLM-driven agent.
type AgentConfig struct {
	Model         string
	Instructions  string
	MaxSteps      int
	MaxTokens     int
	ActionTimeout time.Duration // bounds one browser action chosen by the agent
}

// ExecutionConfig bounds a single execution.
type ExecutionConfig struct {
	Deadline     time.Duration
	CloseTimeout time.Duration
}

// LocalBrowserConfig configures the docker-backed local browser.
type LocalBrowserConfig struct {
	Image   string
	Runtime string // Docker runtime: "" = default (runc), "runsc" = gVisor
}

// HistoryConfig controls the SQLite execution history.
type HistoryConfig struct {
	Enabled       bool
	DBPath        string
	Retention     time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
// Credentials are read but not required here: a missing secret is reported
// per request so the HTTP surface can name it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "9090"),
		Provider: strings.ToLower(getEnv("BROWSER_PROVIDER", ProviderBrowserbase)),
		Credentials: Credentials{
			BrowserbaseAPIKey:    os.Getenv(EnvBrowserbaseAPIKey),
			BrowserbaseProjectID: os.Getenv(EnvBrowserbaseProjectID),
			AnthropicAPIKey:      os.Getenv(EnvAnthropicAPIKey),
		},
		Browserbase: BrowserbaseConfig{
			BaseURL: getEnv("BROWSERBASE_BASE_URL", "https://api.browserbase.com"),
			Timeout: getEnvDuration("BROWSERBASE_TIMEOUT", 30*time.Second),
		},
		Agent: AgentConfig{
			Model:         getEnv("LLM_MODEL", "claude-sonnet-4-20250514"),
			Instructions:  getEnv("AGENT_INSTRUCTIONS", DefaultAgentInstructions),
			MaxSteps:      getEnvInt("AGENT_MAX_STEPS", 5),
			MaxTokens:     getEnvInt("AGENT_MAX_TOKENS", 1024),
			ActionTimeout: getEnvDuration("AGENT_ACTION_TIMEOUT", 3*time.Second),
		},
		Execution: ExecutionConfig{
			Deadline:     getEnvDuration("EXECUTION_DEADLINE", 10*time.Second),
			CloseTimeout: getEnvDuration("CLOSE_TIMEOUT", 5*time.Second),
		},
		Local: LocalBrowserConfig{
			Image:   getEnv("LOCAL_BROWSER_IMAGE", "chromedp/headless-shell:latest"),
			Runtime: getEnv("CONTAINER_RUNTIME", ""),
		},
		History: HistoryConfig{
			Enabled:       getEnvBool("HISTORY_ENABLED", true),
			DBPath:        getEnv("DB_PATH", "./data/executions.db"),
			Retention:     getEnvDuration("HISTORY_RETENTION", 7*24*time.Hour),
			SweepInterval: getEnvDuration("HISTORY_SWEEP_INTERVAL", 10*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Provider != ProviderBrowserbase && c.Provider != ProviderLocal {
		return fmt.Errorf("BROWSER_PROVIDER must be %q or %q, got %q", ProviderBrowserbase, ProviderLocal, c.Provider)
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS must be > 0")
	}
	if c.Agent.MaxTokens <= 0 {
		return fmt.Errorf("AGENT_MAX_TOKENS must be > 0")
	}
	if c.Execution.Deadline <= 0 {
		return fmt.Errorf("EXECUTION_DEADLINE must be > 0")
	}
	if c.Execution.CloseTimeout <= 0 {
		return fmt.Errorf("CLOSE_TIMEOUT must be > 0")
	}
	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when history is enabled")
		}
		if c.History.SweepInterval <= 0 {
			return fmt.Errorf("HISTORY_SWEEP_INTERVAL must be > 0")
		}
	}
	return nil
}

// RequiredCredentials returns the secret names the configured provider needs,
// in the order they are checked.
func (c *Config) RequiredCredentials() []string {
	if c.Provider == ProviderLocal {
		return []string{EnvAnthropicAPIKey}
	}
	return []string{EnvBrowserbaseAPIKey, EnvBrowserbaseProjectID, EnvAnthropicAPIKey}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
