package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/chefhub/pkg/middleware"
	"github.com/platinummonkey/chefhub/pkg/observability"
	"github.com/platinummonkey/chefhub/pkg/storage"
	"github.com/platinummonkey/chefhub/pkg/webhooks"
)

// ConfigFileEnv names the optional YAML file layered under the environment
const ConfigFileEnv = "CHEFHUB_CONFIG_FILE"

const minTokenSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      storage.Config      `yaml:"database"`
	Redis         storage.RedisConfig `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Enrollment    EnrollmentConfig    `yaml:"enrollment"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Audit         AuditConfig         `yaml:"audit"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig configures credential resolution. OIDC is enabled when an
// issuer URL is set.
type AuthConfig struct {
	TokenSecret   string        `yaml:"token_secret"`
	TokenIssuer   string        `yaml:"token_issuer"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	OIDCIssuerURL string        `yaml:"oidc_issuer_url"`
	OIDCClientID  string        `yaml:"oidc_client_id"`
}

// PaymentsConfig configures the payment provider integration
type PaymentsConfig struct {
	// CallbackSecret verifies inbound payment callbacks
	CallbackSecret string `yaml:"callback_secret"`
	// Endpoints receive payment requests and enrollment notifications
	Endpoints           []webhooks.Endpoint  `yaml:"endpoints"`
	Retry               webhooks.RetryConfig `yaml:"retry"`
	CollaboratorTimeout time.Duration        `yaml:"collaborator_timeout"`
}

// EnrollmentConfig controls the pending-enrollment sweeper
type EnrollmentConfig struct {
	PendingTTL     time.Duration `yaml:"pending_ttl"`
	SweepSchedule  string        `yaml:"sweep_schedule"`
	SweepBatchSize int           `yaml:"sweep_batch_size"`
	SweepWorkers   int           `yaml:"sweep_workers"`
}

// CatalogConfig controls the published-course cache
type CatalogConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AuditConfig controls the access audit trail. A zero Retention keeps
// events forever.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Retention       time.Duration `yaml:"retention"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// RateLimitConfig holds per-caller request limits. Distributed limits are
// kept in Redis and require a Redis URL.
type RateLimitConfig struct {
	Enabled     bool                       `yaml:"enabled"`
	Distributed bool                       `yaml:"distributed"`
	Anonymous   middleware.RateLimitConfig `yaml:"anonymous"`
	User        middleware.RateLimitConfig `yaml:"user"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Log            observability.LogConfig  `yaml:"log"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: storage.DefaultConfig(),
		Auth: AuthConfig{
			TokenIssuer: "chefhub",
			TokenTTL:    24 * time.Hour,
		},
		Payments: PaymentsConfig{
			Retry:               webhooks.DefaultRetryConfig(),
			CollaboratorTimeout: 10 * time.Second,
		},
		Enrollment: EnrollmentConfig{
			PendingTTL:     time.Hour,
			SweepSchedule:  "@every 5m",
			SweepBatchSize: 100,
			SweepWorkers:   4,
		},
		Catalog: CatalogConfig{TTL: 5 * time.Minute},
		Audit: AuditConfig{
			Enabled:         true,
			Retention:       90 * 24 * time.Hour,
			CleanupSchedule: "@daily",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Anonymous: *middleware.DefaultRateLimitConfig(),
			User:      *middleware.PerUserRateLimitConfig(),
		},
		Observability: ObservabilityConfig{
			Log:            observability.LogConfig{Level: "info", Format: "json"},
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "chefhub",
				ServiceVersion: "dev",
				Insecure:       true,
				SampleRatio:    1,
			},
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CHEFHUB_CONFIG_FILE, then environment variables, and validates it
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("CHEFHUB_HOST", s.Host)
	s.Port = getEnv("CHEFHUB_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("CHEFHUB_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CHEFHUB_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CHEFHUB_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("CHEFHUB_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("CHEFHUB_CORS_ORIGINS", s.CORSOrigins)
	s.MaxBodyBytes = getEnvInt64("CHEFHUB_MAX_BODY_BYTES", s.MaxBodyBytes)

	db := &c.Database
	db.Driver = getEnv("CHEFHUB_DB_DRIVER", db.Driver)
	db.DSN = getEnv("CHEFHUB_DB_DSN", db.DSN)
	db.MaxConns = getEnvInt("CHEFHUB_DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvInt("CHEFHUB_DB_MIN_CONNS", db.MinConns)
	db.Timeout = getEnvDuration("CHEFHUB_DB_TIMEOUT", db.Timeout)

	r := &c.Redis
	r.URL = getEnv("CHEFHUB_REDIS_URL", r.URL)
	r.Password = getEnv("CHEFHUB_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("CHEFHUB_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("CHEFHUB_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("CHEFHUB_REDIS_POOL_SIZE", r.PoolSize)

	a := &c.Auth
	a.TokenSecret = getEnv("CHEFHUB_TOKEN_SECRET", a.TokenSecret)
	a.TokenIssuer = getEnv("CHEFHUB_TOKEN_ISSUER", a.TokenIssuer)
	a.TokenTTL = getEnvDuration("CHEFHUB_TOKEN_TTL", a.TokenTTL)
	a.OIDCIssuerURL = getEnv("CHEFHUB_OIDC_ISSUER_URL", a.OIDCIssuerURL)
	a.OIDCClientID = getEnv("CHEFHUB_OIDC_CLIENT_ID", a.OIDCClientID)

	p := &c.Payments
	p.CallbackSecret = getEnv("CHEFHUB_PAYMENT_CALLBACK_SECRET", p.CallbackSecret)
	p.CollaboratorTimeout = getEnvDuration("CHEFHUB_COLLABORATOR_TIMEOUT", p.CollaboratorTimeout)
	p.Retry.MaxAttempts = getEnvInt("CHEFHUB_WEBHOOK_MAX_ATTEMPTS", p.Retry.MaxAttempts)
	if url := os.Getenv("CHEFHUB_PAYMENT_ENDPOINT_URL"); url != "" {
		p.Endpoints = append(p.Endpoints, webhooks.Endpoint{
			Name:   "payments",
			URL:    url,
			Secret: os.Getenv("CHEFHUB_PAYMENT_ENDPOINT_SECRET"),
		})
	}

	e := &c.Enrollment
	e.PendingTTL = getEnvDuration("CHEFHUB_PENDING_TTL", e.PendingTTL)
	e.SweepSchedule = getEnv("CHEFHUB_SWEEP_SCHEDULE", e.SweepSchedule)
	e.SweepBatchSize = getEnvInt("CHEFHUB_SWEEP_BATCH_SIZE", e.SweepBatchSize)
	e.SweepWorkers = getEnvInt("CHEFHUB_SWEEP_WORKERS", e.SweepWorkers)

	c.Catalog.TTL = getEnvDuration("CHEFHUB_CATALOG_TTL", c.Catalog.TTL)

	c.Audit.Enabled = getEnvBool("CHEFHUB_AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.Retention = getEnvDuration("CHEFHUB_AUDIT_RETENTION", c.Audit.Retention)
	c.Audit.CleanupSchedule = getEnv("CHEFHUB_AUDIT_CLEANUP_SCHEDULE", c.Audit.CleanupSchedule)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("CHEFHUB_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Distributed = getEnvBool("CHEFHUB_RATE_LIMIT_DISTRIBUTED", rl.Distributed)
	rl.Anonymous.RequestsPerWindow = getEnvInt("CHEFHUB_RATE_LIMIT_ANONYMOUS", rl.Anonymous.RequestsPerWindow)
	rl.User.RequestsPerWindow = getEnvInt("CHEFHUB_RATE_LIMIT_USER", rl.User.RequestsPerWindow)

	o := &c.Observability
	o.Log.Level = getEnv("CHEFHUB_LOG_LEVEL", o.Log.Level)
	o.Log.Format = getEnv("CHEFHUB_LOG_FORMAT", o.Log.Format)
	o.MetricsEnabled = getEnvBool("CHEFHUB_METRICS_ENABLED", o.MetricsEnabled)
	o.OTel.Enabled = getEnvBool("CHEFHUB_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("CHEFHUB_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("CHEFHUB_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.ServiceVersion = getEnv("CHEFHUB_OTEL_SERVICE_VERSION", o.OTel.ServiceVersion)
	o.OTel.Insecure = getEnvBool("CHEFHUB_OTEL_INSECURE", o.OTel.Insecure)
	o.OTel.SampleRatio = getEnvFloat("CHEFHUB_OTEL_SAMPLE_RATIO", o.OTel.SampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	switch c.Database.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if len(c.Auth.TokenSecret) < minTokenSecretLength {
		return fmt.Errorf("token secret must be at least %d characters", minTokenSecretLength)
	}
	if (c.Auth.OIDCIssuerURL == "") != (c.Auth.OIDCClientID == "") {
		return fmt.Errorf("OIDC issuer URL and client id must be set together")
	}

	for i, ep := range c.Payments.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("payment endpoint %d: url is required", i)
		}
		if ep.Secret == "" {
			return fmt.Errorf("payment endpoint %q: secret is required", ep.Name)
		}
	}

	if c.Enrollment.PendingTTL <= 0 {
		return fmt.Errorf("pending TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.Enrollment.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", c.Enrollment.SweepSchedule, err)
	}

	if c.Audit.Retention < 0 {
		return fmt.Errorf("audit retention must not be negative")
	}
	if c.Audit.Enabled && c.Audit.Retention > 0 {
		if _, err := cron.ParseStandard(c.Audit.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid audit cleanup schedule %q: %w", c.Audit.CleanupSchedule, err)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Anonymous.RequestsPerWindow <= 0 || c.RateLimit.User.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limits must be positive when enabled")
		}
		if c.RateLimit.Anonymous.WindowDuration <= 0 || c.RateLimit.User.WindowDuration <= 0 {
			return fmt.Errorf("rate limit windows must be positive when enabled")
		}
		if c.RateLimit.Distributed && c.Redis.URL == "" {
			return fmt.Errorf("distributed rate limiting requires a redis URL")
		}
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
