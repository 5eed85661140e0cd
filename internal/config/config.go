// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docent/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, inference knobs, embedder
//   - Knowledge base: identifier, retrieval defaults, context budget
//   - Storage: PostgreSQL connection (see storage.go)
//   - Serve: webhook secret, CORS, tracing
//
// Sensitive values (passwords, secrets) are masked in MarshalJSON and
// String so a printed config never leaks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopP indicates the top_p value is out of range.
	ErrInvalidTopP = errors.New("invalid top_p")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval result count is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidSearchMode indicates an unsupported retrieval search mode.
	ErrInvalidSearchMode = errors.New("invalid search mode")

	// ErrInvalidContextChars indicates the context character budget is invalid.
	ErrInvalidContextChars = errors.New("invalid context character budget")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingWebhookSecret indicates the webhook HMAC secret is not set.
	ErrMissingWebhookSecret = errors.New("missing webhook secret")

	// ErrInvalidWebhookSecret indicates the webhook HMAC secret is too short.
	ErrInvalidWebhookSecret = errors.New("invalid webhook secret")
)

// Retrieval search modes accepted in Config.SearchMode.
const (
	SearchModeHybrid   = "HYBRID"
	SearchModeSemantic = "SEMANTIC"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// Our pgvector schema stores 768-dimension vectors.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultTopK is the default retrieval result count. Deliberately
	// higher than a naive default so the generation context sees enough
	// source material for citation coverage.
	DefaultTopK = 20

	// DefaultContextChars is the default character budget for the
	// generation context assembled from retrieved chunks.
	DefaultContextChars = 50000
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	TopP        float64 `mapstructure:"top_p" json:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	LatencyMode string  `mapstructure:"latency_mode" json:"latency_mode"`

	// Knowledge base configuration
	KnowledgeBaseID string `mapstructure:"knowledge_base_id" json:"knowledge_base_id"`
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	TopK            int    `mapstructure:"top_k" json:"top_k"`
	SearchMode      string `mapstructure:"search_mode" json:"search_mode"`
	RerankingModel  string `mapstructure:"reranking_model" json:"reranking_model"`
	ContextChars    int    `mapstructure:"context_chars" json:"context_chars"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve configuration
	WebhookSecret string   `mapstructure:"webhook_secret" json:"webhook_secret"` // SENSITIVE: masked in MarshalJSON
	CORSOrigins   []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy    bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	LogLevel      string   `mapstructure:"log_level" json:"log_level"`

	// Tracing configuration (OTLP agent mode)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures trace export to a local OTLP agent.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", "gemini")
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("top_p", 0.9)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("latency_mode", "standard")

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("search_mode", SearchModeHybrid)
	viper.SetDefault("context_chars", DefaultContextChars)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docent")
	viper.SetDefault("postgres_password", "docent_dev_password")
	viper.SetDefault("postgres_db_name", "docent")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.agent_host", "localhost:4318")
	viper.SetDefault("tracing.service_name", "docent")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; validation
// checks its presence in cfg.Validate().
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("knowledge_base_id", "DOCENT_KNOWLEDGE_BASE_ID")
	mustBind("model_name", "DOCENT_MODEL_NAME")
	mustBind("provider", "DOCENT_PROVIDER")
	mustBind("webhook_secret", "DOCENT_WEBHOOK_SECRET")
	mustBind("cors_origins", "DOCENT_CORS_ORIGINS")
	mustBind("trust_proxy", "DOCENT_TRUST_PROXY")
	mustBind("log_level", "DOCENT_LOG_LEVEL")
	mustBind("tracing.agent_host", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked to avoid substring matches; longer secrets keep the first
// and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.WebhookSecret = maskSecret(a.WebhookSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
