// Package config loads service configuration from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file in the working directory. Real environment variables win over .env.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ecovision/internal/analytics"
	"ecovision/internal/cache"
	"ecovision/pkg/database"
	"ecovision/pkg/logging"
)

// Environments accepted in APP_ENV
const (
	EnvLocal   = "local"
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Config is the top-level service configuration
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Analytics AnalyticsConfig
	Seed      SeedConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*" validate:"min=1,dive,required"`
}

// DatabaseConfig holds PostgreSQL connection and pool configuration
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost" validate:"required"`
	Port            int           `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User            string        `envconfig:"DB_USER" default:"postgres" validate:"required"`
	Password        string        `envconfig:"DB_PASSWORD"`
	Database        string        `envconfig:"DB_NAME" default:"ecovision" validate:"required"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25" validate:"min=1"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnectTimeout  time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig configures the analytics cache. An empty address disables it.
type RedisConfig struct {
	Address        string        `envconfig:"REDIS_ADDRESS"`
	Password       string        `envconfig:"REDIS_PASSWORD"`
	DB             int           `envconfig:"REDIS_DB" default:"0" validate:"min=0"`
	TTL            time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	ConnectTimeout time.Duration `envconfig:"REDIS_CONNECT_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// AnalyticsConfig tunes the trend analyzer
type AnalyticsConfig struct {
	Concurrency   int     `envconfig:"ANALYTICS_CONCURRENCY" default:"4" validate:"min=1"`
	SeasonMapping string  `envconfig:"ANALYTICS_SEASON_MAPPING" default:"meteorological" validate:"oneof=meteorological legacy"`
	WarmThreshold float64 `envconfig:"ANALYTICS_WARM_THRESHOLD" default:"15"`
	MinMonths     int     `envconfig:"ANALYTICS_MIN_MONTHS" default:"0" validate:"min=0,max=12"`
	// Precision is the number of decimals in trend output; -1 disables rounding.
	Precision int `envconfig:"ANALYTICS_PRECISION" default:"2" validate:"min=-1,max=10"`
}

// SeedConfig controls loading of the static seed document
type SeedConfig struct {
	File           string `envconfig:"SEED_FILE"`
	BatchSize      int    `envconfig:"SEED_BATCH_SIZE" default:"500" validate:"min=1"`
	Reset          bool   `envconfig:"SEED_RESET" default:"true"`
	DropOnShutdown bool   `envconfig:"SEED_DROP_ON_SHUTDOWN" default:"false"`
}

// ConfigError reports a configuration failure and the stage it happened in
type ConfigError struct {
	Stage   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig reads .env (if present) and the environment, then validates
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Stage:   "parsing",
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{
			Stage:   "validation",
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return &ConfigError{
			Stage:   "validation",
			Message: "DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS",
		}
	}

	if c.Seed.DropOnShutdown && c.Environment != EnvDev {
		return &ConfigError{
			Stage:   "validation",
			Message: "SEED_DROP_ON_SHUTDOWN is only allowed with APP_ENV=dev",
		}
	}

	return nil
}

// IsDev reports whether the service runs in the dev environment
func (c *Config) IsDev() bool {
	return c.Environment == EnvDev
}

// LogLevel returns the configured logging level
func (c *Config) LogLevel() logging.LogLevel {
	return logging.ParseLevel(c.Logging.Level)
}

// DatabaseConfig converts the database section for pkg/database
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
	}
}

// CacheConfig converts the redis section for the analytics cache
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Address:        strings.TrimSpace(c.Redis.Address),
		Password:       c.Redis.Password,
		DB:             c.Redis.DB,
		TTL:            c.Redis.TTL,
		ConnectTimeout: c.Redis.ConnectTimeout,
	}
}

// AnalyzerOptions builds trend analyzer options from the analytics section
func (c *Config) AnalyzerOptions() ([]analytics.Option, error) {
	seasons, err := analytics.SeasonMapFor(c.Analytics.SeasonMapping)
	if err != nil {
		return nil, &ConfigError{Stage: "analytics", Message: "invalid season mapping", Err: err}
	}

	detector := analytics.NewMonthlyPatternDetector(seasons)
	detector.WarmThreshold = c.Analytics.WarmThreshold
	detector.MinMonths = c.Analytics.MinMonths

	return []analytics.Option{
		analytics.WithDetector(detector),
		analytics.WithPrecision(c.Analytics.Precision),
		analytics.WithConcurrency(c.Analytics.Concurrency),
	}, nil
}
