// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/llm"
)

// Provider names accepted in PROVIDER_ORDER.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	GRPCPort        string
	FrontendURL     string
	DBPath          string
	LogLevel        string
	Completion      CompletionConfig
	Groq            ProviderCredentials
	OpenAI          ProviderCredentials
	Gemini          ProviderCredentials
	RateLimit       RateLimitConfig
	HTTP            HTTPConfig
	Retention       RetentionConfig
	ConversationLog ConversationLogConfig
}

// CompletionConfig controls provider fallback.
type CompletionConfig struct {
	HistoryWindow     int
	ProviderOrder     []string
	ProviderTimeout   time.Duration
	ProviderRateLimit float64 // requests per second per provider, 0 = unpaced
	ProviderBurst     int
	MaxTokens         int
}

// ProviderCredentials configures one backend.
type ProviderCredentials struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RateLimitConfig is the per-user chat request limit.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// HTTPConfig holds inbound request limits.
type HTTPConfig struct {
	MaxRequestBodySize int64
}

// RetentionConfig controls removal of inactive conversations. A zero TTL disables it.
type RetentionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/sequencer.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Completion: CompletionConfig{
			HistoryWindow:     getEnvInt("HISTORY_WINDOW", 5),
			ProviderOrder:     getEnvList("PROVIDER_ORDER", []string{ProviderGroq, ProviderOpenAI}),
			ProviderTimeout:   getEnvDuration("PROVIDER_TIMEOUT", 8*time.Second),
			ProviderRateLimit: getEnvFloat("PROVIDER_RATE_LIMIT", 0),
			ProviderBurst:     getEnvInt("PROVIDER_BURST", 1),
			MaxTokens:         getEnvInt("PROVIDER_MAX_TOKENS", 0),
		},
		Groq: ProviderCredentials{
			APIKey:  getEnv("GROQ_API_KEY", ""),
			Model:   getEnv("GROQ_MODEL", llm.DefaultGroqModel),
			BaseURL: getEnv("GROQ_BASE_URL", llm.GroqBaseURL),
		},
		OpenAI: ProviderCredentials{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", llm.DefaultOpenAIModel),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Gemini: ProviderCredentials{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", llm.DefaultGeminiModel),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		HTTP: HTTPConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
		Retention: RetentionConfig{
			TTL:           getEnvDuration("CONVERSATION_RETENTION", 0),
			SweepInterval: getEnvDuration("RETENTION_SWEEP_INTERVAL", 10*time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
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
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.Completion.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be > 0")
	}
	if c.Completion.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be > 0")
	}
	if c.Completion.ProviderRateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT cannot be negative")
	}
	seen := make(map[string]bool, len(c.Completion.ProviderOrder))
	for _, name := range c.Completion.ProviderOrder {
		if !slices.Contains([]string{ProviderGroq, ProviderOpenAI, ProviderGemini}, name) {
			return fmt.Errorf("PROVIDER_ORDER: unknown provider %q", name)
		}
		if seen[name] {
			return fmt.Errorf("PROVIDER_ORDER: duplicate provider %q", name)
		}
		seen[name] = true
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.HTTP.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.Retention.TTL < 0 {
		return fmt.Errorf("CONVERSATION_RETENTION cannot be negative")
	}
	if c.Retention.TTL > 0 && c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("RETENTION_SWEEP_INTERVAL must be > 0 when retention is enabled")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// ProviderConfigs returns the configured backends in PROVIDER_ORDER.
func (c *Config) ProviderConfigs() []llm.ProviderConfig {
	out := make([]llm.ProviderConfig, 0, len(c.Completion.ProviderOrder))
	for _, name := range c.Completion.ProviderOrder {
		var creds ProviderCredentials
		kind := llm.KindOpenAI
		switch name {
		case ProviderGroq:
			creds = c.Groq
		case ProviderOpenAI:
			creds = c.OpenAI
		case ProviderGemini:
			creds = c.Gemini
			kind = llm.KindGemini
		default:
			continue
		}
		out = append(out, llm.ProviderConfig{
			Name:      name,
			Kind:      kind,
			APIKey:    creds.APIKey,
			Model:     creds.Model,
			BaseURL:   creds.BaseURL,
			MaxTokens: c.Completion.MaxTokens,
		})
	}
	return out
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the frontend.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:5173", "http://localhost:3000"}
	if c.FrontendURL != "" && !slices.Contains(origins, c.FrontendURL) {
		origins = append(origins, c.FrontendURL)
	}
	return origins
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

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
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

// getEnvList splits a comma-separated value, dropping blanks and lowercasing.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
