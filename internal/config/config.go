package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUnsubscribeSecret signs unsubscribe tokens when UNSUBSCRIBE_SECRET
// is unset. Local development only.
const DefaultUnsubscribeSecret = "penny-default-dev-secret-change-me"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port         int
	LogLevel     string
	WriteTimeout time.Duration

	// Banking sandbox (Nessie)
	NessieAPIURL string
	NessieAPIKey string

	// LLM provider (OpenAI-compatible chat completions)
	OpenAIAPIURL string
	OpenAIAPIKey string
	OpenAIModel  string
	LLMTimeout   time.Duration

	// Enrichers
	NewsAPIURL    string
	NewsAPIKey    string
	NewsTopic     string
	MarketAPIURL  string
	MarketTickers []string

	// Email provider (Resend)
	ResendAPIURL string
	ResendAPIKey string
	EmailFrom    string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Rate limiting
	SeedRatePerSec   float64
	BatchRatePerSec  float64
	BatchConcurrency int

	// Cache (market quotes and news digests)
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	UseSupabase        bool

	// Cron + unsubscribe links
	CronSecret        string
	UnsubscribeSecret string
	UnsubscribeTTL    time.Duration
	PublicBaseURL     string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:         getEnvInt("PORT", 8080),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 5*time.Minute),

		NessieAPIURL: getEnv("NESSIE_API_URL", "http://api.nessieisreal.com"),
		NessieAPIKey: getEnv("NESSIE_API_KEY", ""),

		OpenAIAPIURL: getEnv("OPENAI_API_URL", "https://api.openai.com"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 20*time.Second),

		NewsAPIURL:    getEnv("NEWS_API_URL", "https://newsapi.org"),
		NewsAPIKey:    getEnv("NEWS_API_KEY", ""),
		NewsTopic:     getEnv("NEWS_TOPIC", "finance"),
		MarketAPIURL:  getEnv("MARKET_API_URL", "https://query1.finance.yahoo.com"),
		MarketTickers: getEnvList("MARKET_TICKERS", []string{"^GSPC", "^DJI", "^IXIC"}),

		ResendAPIURL: getEnv("RESEND_API_URL", "https://api.resend.com"),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "SmartBriefs <smartbriefs@newsletter.venai.dev>"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		SeedRatePerSec:   getEnvFloat("SEED_RATE_PER_SEC", 5),
		BatchRatePerSec:  getEnvFloat("BATCH_RATE_PER_SEC", 2),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),

		CacheTTL: getEnvDuration("CACHE_TTL", 15*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		UseSupabase:        getEnv("USE_SUPABASE", "true") == "true",

		CronSecret:        getEnv("CRON_SECRET", ""),
		UnsubscribeSecret: getEnv("UNSUBSCRIBE_SECRET", DefaultUnsubscribeSecret),
		UnsubscribeTTL:    getEnvDuration("UNSUBSCRIBE_TTL", 60*24*time.Hour),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}
}

// DefaultSecret reports whether unsubscribe tokens are signed with the
// built-in development secret.
func (c *Config) DefaultSecret() bool {
	return c.UnsubscribeSecret == DefaultUnsubscribeSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
