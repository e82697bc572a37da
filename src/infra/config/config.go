// Package config handles application configuration via environment variables.
// It uses kelseyhightower/envconfig for parsing and provides sensible defaults.
// A .env file in the working directory, when present, is loaded first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"postcontest/src/core/domain"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with the prefix "APP".
// Example: APP_PORT=8080, APP_LOG_LEVEL=debug
type Config struct {
	// Server configuration (embedded to flatten env vars)
	Server ServerConfig

	// Database configuration (embedded to flatten env vars)
	Database DatabaseConfig

	// Logging configuration (embedded to flatten env vars)
	Log LogConfig

	// Admin configuration
	Admin AdminConfig

	// Storage selects the repository backend
	Storage StorageConfig

	// Entry holds the submission policy
	Entry EntryConfig

	// Scheduler drives periodic round evaluation
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// Host is the HTTP server host (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// ReadTimeout is the maximum duration for reading the entire request (default: 10s)
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`

	// WriteTimeout is the maximum duration before timing out writes of the response (default: 30s)
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish (default: 30s)
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// CORSOrigins is a comma separated allow list; "*" allows any origin
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Host is the database host (default: localhost)
	Host string `envconfig:"DB_HOST" default:"localhost"`

	// Port is the database port (default: 5432)
	Port int `envconfig:"DB_PORT" default:"5432"`

	// User is the database user (default: postgres)
	User string `envconfig:"DB_USER" default:"postgres"`

	// Password is the database password (required in production)
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`

	// Name is the database name (default: postcontest)
	Name string `envconfig:"DB_NAME" default:"postcontest"`

	// SSLMode is the SSL mode for the connection (default: disable)
	SSLMode string `envconfig:"DB_SSLMODE" default:"disable"`

	// MaxOpenConns is the maximum number of open connections (default: 25)
	MaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`

	// MaxIdleConns is the maximum number of idle connections (default: 5)
	MaxIdleConns int `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`

	// ConnMaxLifetime is the maximum lifetime of a connection (default: 5m)
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`

	// ConnectTimeout bounds each startup ping (default: 5s)
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`

	// ConnectAttempts is how many pings are tried before giving up (default: 5)
	ConnectAttempts int `envconfig:"DB_CONNECT_ATTEMPTS" default:"5"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the log level: debug, info, warn, error (default: info)
	Level string `envconfig:"LOG_LEVEL" default:"info"`

	// Format is the log format: json, text, plain (default: json)
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// AdminConfig holds admin credentials.
type AdminConfig struct {
	// Token guards the /v1/admin routes. Admin routes reject every request when empty.
	Token string `envconfig:"ADMIN_TOKEN"`
}

// StorageConfig selects and prepares the repository backend.
type StorageConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `envconfig:"STORAGE" default:"postgres"`

	// MigrateOnStart applies pending migrations before serving (default: true)
	MigrateOnStart bool `envconfig:"MIGRATE_ON_START" default:"true"`
}

// EntryConfig holds the entry submission policy.
type EntryConfig struct {
	// ResubmitPolicy is update or reject (default: update)
	ResubmitPolicy string `envconfig:"ENTRY_RESUBMIT_POLICY" default:"update"`

	// RequirePriorQualification gates round N on qualifying in round N-1 (default: false)
	RequirePriorQualification bool `envconfig:"ENTRY_REQUIRE_PRIOR_QUALIFICATION" default:"false"`
}

// SchedulerConfig holds the round evaluation worker settings.
type SchedulerConfig struct {
	// Enabled starts the worker alongside the HTTP server (default: false)
	Enabled bool `envconfig:"SCHEDULER_ENABLED" default:"false"`

	// Interval between evaluation sweeps (default: 1m)
	Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"1m"`

	// Lookback is how far back a sweep looks for ended rounds (default: 24h)
	Lookback time.Duration `envconfig:"SCHEDULER_LOOKBACK" default:"24h"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins splits CORSOrigins into its entries.
func (c *ServerConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// EntryPolicy builds the policy snapshot injected into the entry service.
func (c *EntryConfig) EntryPolicy() (domain.EntryPolicy, error) {
	resubmit, err := domain.ParseResubmitPolicy(c.ResubmitPolicy)
	if err != nil {
		return domain.EntryPolicy{}, err
	}
	return domain.EntryPolicy{
		Resubmit:                  resubmit,
		RequirePriorQualification: c.RequirePriorQualification,
	}, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Entry.EntryPolicy(); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	if c.Scheduler.Lookback < 0 {
		return errors.New("scheduler lookback cannot be negative")
	}
	return nil
}

// Load reads configuration from environment variables.
// It returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config

	// Load each config section separately to flatten env var names
	// This allows env vars like APP_PORT instead of APP_SERVER_PORT
	sections := []struct {
		name string
		spec any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"log", &cfg.Log},
		{"admin", &cfg.Admin},
		{"storage", &cfg.Storage},
		{"entry", &cfg.Entry},
		{"scheduler", &cfg.Scheduler},
	}
	for _, s := range sections {
		if err := envconfig.Process("APP", s.spec); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main.go during startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
