package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultCheckoutTimeout  = 20 * time.Second
	defaultEventTopicPrefix = "supplynet"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Stripe      StripeConfig
	Events      EventsConfig
	Identity    IdentityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig stores relational store parameters.
type DatabaseConfig struct {
	URL string
}

// StripeConfig collects payment provider settings.
type StripeConfig struct {
	APIKey          string
	WebhookSecret   string
	FrontendBaseURL string
	CheckoutTimeout time.Duration
}

// EventsConfig stores Pub/Sub event sink parameters.
type EventsConfig struct {
	ProjectID   string
	TopicPrefix string
}

// IdentityConfig stores the shared secret used to verify principal tokens issued by
// the upstream identity service.
type IdentityConfig struct {
	TokenSecret string
	Issuer      string
}

// IdempotencyConfig controls the order-placement replay cache.
type IdempotencyConfig struct {
	TTL time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the dotenv file consulted during loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies explicit values that take precedence over file and system env.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading the process environment, useful in tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// Load builds the Config from dotenv, process environment and explicit overrides, in
// increasing order of precedence, then validates required fields.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok {
				values[key] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}

	lookup := func(key, fallback string) string {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         lookup("PORT", defaultPort),
			ReadTimeout:  lookupDuration(values, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: lookupDuration(values, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  lookupDuration(values, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			URL: lookup("DATABASE_URL", ""),
		},
		Stripe: StripeConfig{
			APIKey:          lookup("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   lookup("STRIPE_WEBHOOK_SECRET", ""),
			FrontendBaseURL: lookup("FRONTEND_URL", "http://localhost:5173"),
			CheckoutTimeout: lookupDuration(values, "STRIPE_CHECKOUT_TIMEOUT", defaultCheckoutTimeout),
		},
		Events: EventsConfig{
			ProjectID:   lookup("PUBSUB_PROJECT_ID", ""),
			TopicPrefix: lookup("PUBSUB_TOPIC_PREFIX", defaultEventTopicPrefix),
		},
		Identity: IdentityConfig{
			TokenSecret: lookup("IDENTITY_TOKEN_SECRET", ""),
			Issuer:      lookup("IDENTITY_ISSUER", "supplynet-identity"),
		},
		Idempotency: IdempotencyConfig{
			TTL: lookupDuration(values, "IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
	}

	var missing []string
	if cfg.Identity.TokenSecret == "" {
		missing = append(missing, "IDENTITY_TOKEN_SECRET")
	}
	if cfg.Stripe.APIKey != "" && cfg.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "IDEMPOTENCY_TTL")
	}
	if len(missing) > 0 {
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

func lookupDuration(values map[string]string, key string, fallback time.Duration) time.Duration {
	raw, ok := values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func loadDotEnv(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}
