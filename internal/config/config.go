// Package config provides configuration management for the paper graph service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PAPERGRAPH"

// Config holds all configuration for the paper graph service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// CORS contains cross-origin settings for the browser client.
	CORS CORSConfig `mapstructure:"cors"`
	// PDF contains text extraction settings.
	PDF PDFConfig `mapstructure:"pdf"`
	// LLM contains topic oracle settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Search contains related-work search settings.
	Search SearchConfig `mapstructure:"search"`
	// Graph contains knowledge graph assembly settings.
	Graph GraphConfig `mapstructure:"graph"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8000).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	// Analysis runs synchronously, so this must cover a whole pipeline run.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadBytes is the largest accepted PDF upload (default: 10 MiB).
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// CORSConfig holds cross-origin resource sharing settings.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API ("*" allows any).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PDFConfig holds PDF text extraction settings.
type PDFConfig struct {
	// MaxPages is the number of leading pages whose text is extracted.
	MaxPages int `mapstructure:"max_pages"`
}

// LLMConfig holds topic oracle configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for a single oracle call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// MaxInputChars is the number of leading characters of paper text sent to the oracle.
	MaxInputChars int `mapstructure:"max_input_chars"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds settings for one LLM provider.
type ProviderConfig struct {
	// APIKey is loaded from PAPERGRAPH_LLM_<PROVIDER>_API_KEY only.
	APIKey string `mapstructure:"-"`
	// Model is the model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig holds related-work search settings.
type SearchConfig struct {
	// Concurrency bounds the number of in-flight search queries per analysis.
	Concurrency int `mapstructure:"concurrency"`
	// FailOnEmpty turns an empty related-paper list into an analysis failure.
	FailOnEmpty bool `mapstructure:"fail_on_empty"`
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds a single search query.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second (0 disables limiting).
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
	// MaxRetries is the number of retries on 429/5xx (0 disables retries).
	MaxRetries int `mapstructure:"max_retries"`
}

// GraphConfig holds knowledge graph assembly settings.
type GraphConfig struct {
	// MaxNameLength is the display name length above which names are truncated.
	MaxNameLength int `mapstructure:"max_name_length"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from a .env file, environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations, where a missing file is not an error.
func LoadFile(path string) (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/paper-graph-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AutomaticEnv does not split comma separated lists for slices.
	if raw := os.Getenv(EnvPrefix + "_CORS_ALLOWED_ORIGINS"); raw != "" {
		cfg.CORS.AllowedOrigins = splitList(raw)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")

	// OPENAI_API_KEY is honored as a fallback for local development.
	if cfg.LLM.OpenAI.APIKey == "" {
		cfg.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("pdf.max_pages", 10)

	// LLM defaults
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_input_chars", 4000)
	v.SetDefault("llm.openai.model", "gpt-3.5-turbo")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-haiku-20240307")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Search defaults
	v.SetDefault("search.concurrency", 4)
	v.SetDefault("search.fail_on_empty", false)
	v.SetDefault("search.arxiv.base_url", "http://export.arxiv.org/api")
	v.SetDefault("search.arxiv.timeout", "10s")
	v.SetDefault("search.arxiv.rate_limit", 0.0)
	v.SetDefault("search.arxiv.max_results", 3)
	v.SetDefault("search.arxiv.max_retries", 0)

	v.SetDefault("graph.max_name_length", 50)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.PDF.MaxPages <= 0 {
		return fmt.Errorf("pdf max_pages must be positive")
	}

	// Validate LLM config
	if c.LLM.MaxInputChars <= 0 {
		return fmt.Errorf("LLM max_input_chars must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM max_retries must not be negative")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	// Validate search config
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("search concurrency must be positive")
	}
	if c.Search.ArXiv.BaseURL == "" {
		return fmt.Errorf("arxiv base_url is required")
	}
	if c.Search.ArXiv.MaxResults <= 0 {
		return fmt.Errorf("arxiv max_results must be positive")
	}
	if c.Search.ArXiv.Timeout <= 0 {
		return fmt.Errorf("arxiv timeout must be positive")
	}
	if c.Search.ArXiv.MaxRetries < 0 {
		return fmt.Errorf("arxiv max_retries must not be negative")
	}

	if c.Graph.MaxNameLength <= 0 {
		return fmt.Errorf("graph max_name_length must be positive")
	}

	return nil
}
