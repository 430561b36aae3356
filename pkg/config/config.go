package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/haven/pkg/observability"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// DevelopmentJWTSecret is the signing secret used when none is configured.
// Validate refuses it in production.
const DevelopmentJWTSecret = "haven-development-secret-do-not-use"

// MinProductionSecretBytes is the shortest JWT secret accepted in production
const MinProductionSecretBytes = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
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
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds token, cookie and lockout settings
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	JWTExpiresIn     time.Duration `yaml:"jwt_expires_in"`
	JWTIssuer        string        `yaml:"jwt_issuer"`
	CookieExpireDays int           `yaml:"cookie_expire_days"`
	Environment      string        `yaml:"environment"`
	APIKey           string        `yaml:"api_key"`
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LockDuration     time.Duration `yaml:"lock_duration"`
}

// IsProduction reports whether the process runs in the production environment
func (a AuthConfig) IsProduction() bool {
	return a.Environment == EnvProduction
}

// RateLimitConfig holds the per-client login throttle settings
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"` // memory or redis
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
	MaxKeys  int           `yaml:"max_keys"`
}

// StorageConfig selects the account store
type StorageConfig struct {
	Type        string        `yaml:"type"` // memory, sqlite or postgres
	DSN         string        `yaml:"dsn"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level, falling back to info
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, _ := observability.ParseLogLevel(o.LogLevel)
	return level
}

// OTel converts the settings into an observability.OTelConfig
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
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
			HealthPort:      "9090",
		},
		Auth: AuthConfig{
			JWTSecret:        DevelopmentJWTSecret,
			JWTExpiresIn:     7 * 24 * time.Hour,
			JWTIssuer:        "haven",
			CookieExpireDays: 7,
			Environment:      EnvDevelopment,
			MaxLoginAttempts: 5,
			LockDuration:     2 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			Attempts: 10,
			Window:   15 * time.Minute,
			Burst:    0,
			MaxKeys:  10000,
		},
		Storage: StorageConfig{
			Type:     "memory",
			MaxConns: 10,
			MinConns: 2,
			Timeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "haven-api",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by HAVEN_CONFIG_FILE and then environment variables, and validates it
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("HAVEN_CONFIG_FILE"); path != "" {
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

// loadFile overlays the YAML file at path onto c
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

// applyEnv overrides fields whose HAVEN_* variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HAVEN_HOST", s.Host)
	s.Port = getEnv("HAVEN_PORT", s.Port)
	s.HealthPort = getEnv("HAVEN_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("HAVEN_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("HAVEN_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("HAVEN_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("HAVEN_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("HAVEN_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("HAVEN_CORS_ORIGINS", s.CORSOrigins)

	a := &c.Auth
	a.JWTSecret = getEnv("HAVEN_JWT_SECRET", a.JWTSecret)
	a.JWTExpiresIn = getEnvDuration("HAVEN_JWT_EXPIRES_IN", a.JWTExpiresIn)
	a.JWTIssuer = getEnv("HAVEN_JWT_ISSUER", a.JWTIssuer)
	a.CookieExpireDays = getEnvInt("HAVEN_COOKIE_EXPIRE_DAYS", a.CookieExpireDays)
	a.Environment = strings.ToLower(getEnv("HAVEN_ENV", a.Environment))
	a.APIKey = getEnv("HAVEN_API_KEY", a.APIKey)
	a.MaxLoginAttempts = getEnvInt("HAVEN_MAX_LOGIN_ATTEMPTS", a.MaxLoginAttempts)
	a.LockDuration = getEnvDuration("HAVEN_LOCK_DURATION", a.LockDuration)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("HAVEN_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Backend = getEnv("HAVEN_RATE_LIMIT_BACKEND", rl.Backend)
	rl.Attempts = getEnvInt("HAVEN_RATE_LIMIT_ATTEMPTS", rl.Attempts)
	rl.Window = getEnvDuration("HAVEN_RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("HAVEN_RATE_LIMIT_BURST", rl.Burst)
	rl.MaxKeys = getEnvInt("HAVEN_RATE_LIMIT_MAX_KEYS", rl.MaxKeys)

	st := &c.Storage
	st.Type = getEnv("HAVEN_STORAGE_TYPE", st.Type)
	st.DSN = getEnv("HAVEN_DATABASE_URL", st.DSN)
	st.MaxConns = getEnvInt("HAVEN_DATABASE_MAX_CONNS", st.MaxConns)
	st.MinConns = getEnvInt("HAVEN_DATABASE_MIN_CONNS", st.MinConns)
	st.MaxLifetime = getEnvDuration("HAVEN_DATABASE_MAX_LIFETIME", st.MaxLifetime)
	st.Timeout = getEnvDuration("HAVEN_DATABASE_TIMEOUT", st.Timeout)

	r := &c.Redis
	r.URL = getEnv("HAVEN_REDIS_URL", r.URL)
	r.Password = getEnv("HAVEN_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("HAVEN_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("HAVEN_REDIS_POOL_SIZE", r.PoolSize)

	o := &c.Observability
	o.LogLevel = getEnv("HAVEN_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("HAVEN_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("HAVEN_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("HAVEN_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("HAVEN_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("HAVEN_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("HAVEN_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("HAVEN_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort != "" && c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.URL == "" {
				return errors.New("redis URL is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
		if c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0 {
			return errors.New("rate limit attempts and window must be positive")
		}
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("database URL is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or postgres)", c.Storage.Type)
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func (c *Config) validateAuth() error {
	a := c.Auth
	switch a.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s (must be development, test, or production)", a.Environment)
	}

	if a.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if a.JWTExpiresIn <= 0 {
		return errors.New("JWT expiry must be positive")
	}
	if a.CookieExpireDays <= 0 {
		return errors.New("cookie expiry days must be positive")
	}
	if a.MaxLoginAttempts <= 0 || a.LockDuration <= 0 {
		return errors.New("login lockout attempts and duration must be positive")
	}

	if a.IsProduction() {
		if a.JWTSecret == DevelopmentJWTSecret {
			return errors.New("HAVEN_JWT_SECRET must be set in production")
		}
		if len(a.JWTSecret) < MinProductionSecretBytes {
			return fmt.Errorf("JWT secret must be at least %d bytes in production", MinProductionSecretBytes)
		}
		if a.APIKey == "" {
			return errors.New("HAVEN_API_KEY must be set in production")
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

// getEnvFloat returns a float environment variable or a default
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

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
