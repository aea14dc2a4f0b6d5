package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/middleware"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage/postgres"
	"github.com/platinummonkey/bulwark/pkg/tokens"
)

// Cache backends
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// FileEnv names the optional YAML file overlaid on the defaults.
const FileEnv = "BULWARK_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// ServiceName is reported by /health and used as the OTel service name
	ServiceName string `yaml:"serviceName"`

	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Auth          AuthConfig          `yaml:"auth"`
	Platform      PlatformConfig      `yaml:"platform"`
	Reconcile     ReconcileConfig     `yaml:"reconcile"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"healthPort"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
}

// DatabaseConfig holds the Postgres pool settings
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"maxConns"`
	MinConns int    `yaml:"minConns"`
}

// CacheConfig selects the cache backend
type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	RedisURL     string        `yaml:"redisUrl"`
	LocalSize    int           `yaml:"localSize"`
	ListCacheTTL time.Duration `yaml:"listCacheTtl"`
}

// AuthConfig holds token and login settings
type AuthConfig struct {
	JWTSecret     string `yaml:"jwtSecret"`
	JWTIssuer     string `yaml:"jwtIssuer"`
	AccessExpiry  string `yaml:"accessExpiry"`
	RefreshExpiry string `yaml:"refreshExpiry"`

	LoginRateLimit  int           `yaml:"loginRateLimit"`
	LoginRateWindow time.Duration `yaml:"loginRateWindow"`
}

// PlatformConfig holds settings of the platform service
type PlatformConfig struct {
	AuthServiceURL      string        `yaml:"authServiceUrl"`
	AuthServiceTimeout  time.Duration `yaml:"authServiceTimeout"`
	CustomerAdminBypass bool          `yaml:"customerAdminBypass"`
}

// ReconcileConfig holds settings of the onboarding reconciler
type ReconcileConfig struct {
	Schedule   string        `yaml:"schedule"`
	StaleAfter time.Duration `yaml:"staleAfter"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// AuditLogFile, when set, receives a copy of every audit event
	AuditLogFile string `yaml:"auditLogFile"`

	MetricsEnabled bool `yaml:"metricsEnabled"`

	OTelEnabled        bool   `yaml:"otelEnabled"`
	OTelEndpoint       string `yaml:"otelEndpoint"`
	OTelServiceVersion string `yaml:"otelServiceVersion"`
	OTelInsecure       bool   `yaml:"otelInsecure"` // Use insecure gRPC connection
}

// Default returns the built-in configuration for a binary.
func Default(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               "8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			HealthPort:         "9090",
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConns: 20,
			MinConns: 5,
		},
		Cache: CacheConfig{
			Backend:      CacheBackendRedis,
			RedisURL:     "redis://localhost:6379/0",
			LocalSize:    10000,
			ListCacheTTL: 300 * time.Second,
		},
		Auth: AuthConfig{
			JWTIssuer:       "bulwark",
			AccessExpiry:    "15m",
			RefreshExpiry:   "7d",
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		Platform: PlatformConfig{
			AuthServiceURL:      "http://localhost:8081",
			AuthServiceTimeout:  10 * time.Second,
			CustomerAdminBypass: true,
		},
		Reconcile: ReconcileConfig{
			Schedule:   "@every 5m",
			StaleAfter: 10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// Load builds the configuration of serviceName from the defaults, the YAML
// file named by BULWARK_CONFIG_FILE and BULWARK_* environment variables, in
// increasing order of precedence.
func Load(serviceName string) (*Config, error) {
	cfg := Default(serviceName)

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

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

func (c *Config) loadEnv() {
	setString(&c.ServiceName, "BULWARK_SERVICE_NAME")

	// Server
	setString(&c.Server.Host, "BULWARK_HOST")
	setString(&c.Server.Port, "BULWARK_PORT")
	setString(&c.Server.HealthPort, "BULWARK_HEALTH_PORT")
	setDuration(&c.Server.ReadTimeout, "BULWARK_READ_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "BULWARK_WRITE_TIMEOUT")
	setDuration(&c.Server.IdleTimeout, "BULWARK_IDLE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "BULWARK_SHUTDOWN_TIMEOUT")
	setList(&c.Server.CORSAllowedOrigins, "BULWARK_CORS_ALLOWED_ORIGINS")

	// Database
	setString(&c.Database.URL, "BULWARK_DATABASE_URL")
	setInt(&c.Database.MaxConns, "BULWARK_DATABASE_MAX_CONNS")
	setInt(&c.Database.MinConns, "BULWARK_DATABASE_MIN_CONNS")

	// Cache
	setString(&c.Cache.Backend, "BULWARK_CACHE_BACKEND")
	setString(&c.Cache.RedisURL, "BULWARK_REDIS_URL")
	setInt(&c.Cache.LocalSize, "BULWARK_LOCAL_CACHE_SIZE")
	setDuration(&c.Cache.ListCacheTTL, "BULWARK_LIST_CACHE_TTL")

	// Auth
	setString(&c.Auth.JWTSecret, "BULWARK_JWT_SECRET")
	setString(&c.Auth.JWTIssuer, "BULWARK_JWT_ISSUER")
	setString(&c.Auth.AccessExpiry, "BULWARK_JWT_ACCESS_EXPIRY")
	setString(&c.Auth.RefreshExpiry, "BULWARK_JWT_REFRESH_EXPIRY")
	setInt(&c.Auth.LoginRateLimit, "BULWARK_LOGIN_RATE_LIMIT")
	setDuration(&c.Auth.LoginRateWindow, "BULWARK_LOGIN_RATE_WINDOW")

	// Platform
	setString(&c.Platform.AuthServiceURL, "BULWARK_AUTH_SERVICE_URL")
	setDuration(&c.Platform.AuthServiceTimeout, "BULWARK_AUTH_SERVICE_TIMEOUT")
	setBool(&c.Platform.CustomerAdminBypass, "BULWARK_CUSTOMER_ADMIN_BYPASS")

	// Reconciler
	setString(&c.Reconcile.Schedule, "BULWARK_RECONCILE_SCHEDULE")
	setDuration(&c.Reconcile.StaleAfter, "BULWARK_RECONCILE_STALE_AFTER")

	// Observability
	setString(&c.Observability.LogLevel, "BULWARK_LOG_LEVEL")
	setString(&c.Observability.LogFormat, "BULWARK_LOG_FORMAT")
	setString(&c.Observability.AuditLogFile, "BULWARK_AUDIT_LOG_FILE")
	setBool(&c.Observability.MetricsEnabled, "BULWARK_METRICS_ENABLED")
	setBool(&c.Observability.OTelEnabled, "BULWARK_OTEL_ENABLED")
	setString(&c.Observability.OTelEndpoint, "BULWARK_OTEL_ENDPOINT")
	setString(&c.Observability.OTelServiceVersion, "BULWARK_OTEL_SERVICE_VERSION")
	setBool(&c.Observability.OTelInsecure, "BULWARK_OTEL_INSECURE")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("invalid cache backend: %s (must be redis or memory)", c.Cache.Backend)
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}
	return nil
}

// Connection returns the Postgres pool settings.
func (c *Config) Connection() postgres.ConnectionConfig {
	conn := postgres.DefaultConnectionConfig(c.Database.URL)
	if c.Database.MaxConns > 0 {
		conn.MaxConns = c.Database.MaxConns
	}
	if c.Database.MinConns > 0 {
		conn.MinConns = c.Database.MinConns
	}
	return conn
}

// Redis returns the Redis client settings.
func (c *Config) Redis() cache.RedisConfig {
	return cache.RedisConfig{URL: c.Cache.RedisURL}
}

// Tokens returns the token issuer settings.
func (c *Config) Tokens() tokens.Config {
	return tokens.Config{
		Secret:        c.Auth.JWTSecret,
		Issuer:        c.Auth.JWTIssuer,
		AccessExpiry:  c.Auth.AccessExpiry,
		RefreshExpiry: c.Auth.RefreshExpiry,
	}
}

// LoginRateLimit returns the per-IP login limiter settings.
func (c *Config) LoginRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RequestsPerWindow: c.Auth.LoginRateLimit,
		WindowDuration:    c.Auth.LoginRateWindow,
	}
}

// OTel returns the tracing settings.
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// NewLogger builds the process logger from the observability settings.
func (c *Config) NewLogger() *observability.Logger {
	level := observability.ParseLogLevel(c.Observability.LogLevel)
	var logger *observability.Logger
	if strings.EqualFold(c.Observability.LogFormat, "text") {
		logger = observability.NewTextLogger(level, os.Stdout)
	} else {
		logger = observability.NewLogger(level, os.Stdout)
	}
	return logger.WithField("service", c.ServiceName)
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = duration
		}
	}
}

// setList parses a comma separated list, dropping empty entries.
func setList(dst *[]string, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
