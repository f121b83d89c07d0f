package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MigrateOnStart     bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTSkew     time.Duration

	CurrencySymbol        string
	CurrencyMinorUnits    int64
	PricingTaxRateBPS     int
	ShippingFlat          int64
	ShippingFreeThreshold int64

	CartTTL         time.Duration
	CatalogCacheTTL time.Duration
	CatalogMaxLimit int
	IdempotencyTTL  time.Duration
	CheckoutLockTTL time.Duration
	BodyLimitBytes  int64

	RateLimitPublic         string
	RateLimitCheckoutMax    int
	RateLimitCheckoutWindow time.Duration

	QueueName         string
	QueueMaxRetry     int
	WorkerConcurrency int
	WorkerMetricsAddr string

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	TracingEnabled   bool
	TracingEndpoint  string
	TracingSampling  float64
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
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), true),

		JWTSecret:   k.String("JWT_SECRET"),
		JWTIssuer:   strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTSkew:     parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),

		CurrencySymbol:        valueOrDefault(k.String("CURRENCY_SYMBOL"), "$"),
		CurrencyMinorUnits:    parseInt64(k.String("CURRENCY_MINOR_UNITS"), 100),
		PricingTaxRateBPS:     int(parseInt64(k.String("PRICING_TAX_RATE_BPS"), 0)),
		ShippingFlat:          parseInt64(k.String("SHIPPING_FLAT"), 0),
		ShippingFreeThreshold: parseInt64(k.String("SHIPPING_FREE_THRESHOLD"), 0),

		CartTTL:         parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogMaxLimit: int(parseInt64(k.String("CATALOG_MAX_LIMIT"), 100)),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutLockTTL: parseDuration(k.String("CHECKOUT_LOCK_TTL"), "15s"),
		BodyLimitBytes:  parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),

		RateLimitPublic:         valueOrDefault(k.String("RATE_LIMIT_PUBLIC"), "300-M"),
		RateLimitCheckoutMax:    int(parseInt64(k.String("RATE_LIMIT_CHECKOUT_MAX"), 5)),
		RateLimitCheckoutWindow: parseDuration(k.String("RATE_LIMIT_CHECKOUT_WINDOW"), "1m"),

		QueueName:         valueOrDefault(k.String("QUEUE_NAME"), "default"),
		QueueMaxRetry:     int(parseInt64(k.String("QUEUE_MAX_RETRY"), 5)),
		WorkerConcurrency: int(parseInt64(k.String("WORKER_CONCURRENCY"), 5)),
		WorkerMetricsAddr: valueOrDefault(k.String("WORKER_METRICS_ADDR"), ":9091"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "sneakers"),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingEndpoint:  strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.CurrencyMinorUnits <= 0 {
		return nil, fmt.Errorf("CURRENCY_MINOR_UNITS must be positive, got %d", cfg.CurrencyMinorUnits)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
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

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
