package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment. It is
// built once at startup and must not be mutated afterwards.
type Config struct {
	AppEnv             string
	Port               string
	PublicKey          string
	IntegrityKey       string
	WebhookSecret      string
	PrivateKey         string
	ProcessorBaseURL   string
	ProcessorTimeout   time.Duration
	CurrencyCode       string
	ReferencePrefix    string
	OrderLookupTimeout time.Duration
	RedisURL           string
	DatabaseURL        string
	OrderCacheTTL      time.Duration
	WebhookReplayTTL   time.Duration
	WebhookMaxBody     int64
	IdempotencyTTL     time.Duration
	RateLimitWindow    time.Duration
	RateLimitMax       int
	CORSAllowedOrigins []string
	BreakerMinRequests int
	BreakerFailureRate float64
	BreakerOpenFor     time.Duration
	QueueEnabled       bool
	QueueMaxRetry      int
	WorkerConcurrency  int
	RunMigrations      bool
	ShutdownTimeout    time.Duration
	HealthTimeout      time.Duration
	SecurityHeaders    bool
	EnableHSTS         bool
	Obs                ObsConfig
}

// ObsConfig groups logging, metrics, tracing and profiling settings.
type ObsConfig struct {
	LogFormat       string
	LogLevel        string
	MetricsEnabled  bool
	MetricsNS       string
	MetricsBuckets  string
	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	SamplingRatio   float64
	PprofEnabled    bool
	PprofUser       string
	PprofPass       string
}

// ConfigurationError reports required settings that are missing. The process
// must not start when Load returns it.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: missing required settings: %s", strings.Join(e.Missing, ", "))
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "3000"),
		PublicKey:          strings.TrimSpace(k.String("PUBLIC_KEY")),
		IntegrityKey:       strings.TrimSpace(k.String("INTEGRITY_KEY")),
		WebhookSecret:      strings.TrimSpace(k.String("WEBHOOK_SECRET")),
		PrivateKey:         strings.TrimSpace(k.String("PRIVATE_KEY")),
		ProcessorBaseURL:   strings.TrimRight(valueOrDefault(k.String("PROCESSOR_BASE_URL"), "https://production.wompi.co/v1"), "/"),
		ProcessorTimeout:   parseDuration(k.String("PROCESSOR_TIMEOUT"), "5s"),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "COP")),
		ReferencePrefix:    valueOrDefault(k.String("REFERENCE_PREFIX"), "order-"),
		OrderLookupTimeout: parseDuration(k.String("ORDER_LOOKUP_TIMEOUT"), "3s"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		OrderCacheTTL:      parseDuration(k.String("ORDER_CACHE_TTL"), "30s"),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxBody:     int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 1<<20)),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:       parseInt(k.String("RATE_LIMIT_MAX"), 120),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BreakerMinRequests: parseInt(k.String("CIRCUIT_PROCESSOR_MIN_REQUESTS"), 10),
		BreakerFailureRate: parseFloat(k.String("CIRCUIT_PROCESSOR_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:     parseDuration(k.String("CIRCUIT_PROCESSOR_OPEN_FOR"), "30s"),
		QueueEnabled:       parseBool(k.String("QUEUE_ENABLED")),
		QueueMaxRetry:      parseInt(k.String("QUEUE_MAX_RETRY"), 10),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		RunMigrations:      parseBoolDefault(k.String("DB_RUN_MIGRATIONS"), true),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		HealthTimeout:      parseDuration(k.String("HEALTH_READY_TIMEOUT"), "500ms"),
		SecurityHeaders:    parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		EnableHSTS:         parseBool(k.String("SECURITY_HSTS_ENABLED")),
		Obs: ObsConfig{
			LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:  parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNS:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "checkout"),
			MetricsBuckets:  strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:  parseBool(k.String("OBS_ENABLE_TRACING")),
			TracingExporter: valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:    strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:    parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:       strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:       strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	var missing []string
	if cfg.PublicKey == "" {
		missing = append(missing, "PUBLIC_KEY")
	}
	if cfg.IntegrityKey == "" {
		missing = append(missing, "INTEGRITY_KEY")
	}
	if cfg.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// PaymentLinksEnabled reports whether the server holds a private key for the
// processor's payment-link API.
func (c *Config) PaymentLinksEnabled() bool {
	return c.PrivateKey != ""
}

// Redacted returns a loggable view of the configuration. Secret values are
// replaced with a presence marker.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"app_env":            c.AppEnv,
		"port":               c.Port,
		"public_key":         c.PublicKey,
		"integrity_key":      presence(c.IntegrityKey),
		"webhook_secret":     presence(c.WebhookSecret),
		"private_key":        presence(c.PrivateKey),
		"processor_base_url": c.ProcessorBaseURL,
		"currency":           c.CurrencyCode,
		"redis":              presence(c.RedisURL),
		"database":           presence(c.DatabaseURL),
	}
}

func presence(value string) string {
	if value == "" {
		return "unset"
	}
	return "set"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
