// Package config provides configuration management for the blog application.
// It handles loading and validation of configuration values from environment variables,
// with support for required variables, default values, and collective error reporting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Sweep lock backends.
const (
	SweepLockNone     = "none"
	SweepLockPostgres = "postgres"
	SweepLockRedis    = "redis"
)

// DatabasePools holds configuration for the two connection pools: one serving HTTP
// requests and one reserved for background jobs, so a slow sweep never starves requests.
type DatabasePools struct {
	AppPool *PoolConfig
	JobPool *PoolConfig
}

// PoolConfig represents configuration for a single database connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret            string        // Secret key for signing JWTs
	AccessTokenDuration  time.Duration // Duration for access tokens
	RefreshTokenDuration time.Duration // Duration for refresh tokens
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port           string // Port for the HTTP server
	RateLimitRPS   float64
	RateLimitBurst int
}

// SweeperConfig controls the post expiry sweep.
type SweeperConfig struct {
	Interval time.Duration // How often a sweep runs
	MaxAge   time.Duration // Posts strictly older than this are deleted
	Lock     string        // none | postgres | redis
	RedisURL string
}

// EventsConfig controls where post lifecycle events are published besides SSE.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Storage       string
	MigrationsDir string
	RunMigrations bool
	DBPools       *DatabasePools
	Auth          *AuthConfig
	Server        *ServerConfig
	Sweeper       *SweeperConfig
	Events        *EventsConfig
	Log           *LogConfig
}

// loader accumulates every configuration problem so the operator sees all of them at once.
type loader struct {
	errs *multierror.Error
}

func (l *loader) fail(format string, args ...interface{}) {
	l.errs = multierror.Append(l.errs, fmt.Errorf(format, args...))
}

func (l *loader) required(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		l.fail("missing required environment variable: %s", key)
		return ""
	}
	return value
}

func optional(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (l *loader) optionalInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		l.fail("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err)
		return defaultValue
	}
	return valueInt
}

func (l *loader) optionalFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		l.fail("invalid value for %s: expected number, got '%s': %v", key, valueStr, err)
		return defaultValue
	}
	return v
}

func (l *loader) optionalBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.ParseBool(valueStr)
	if err != nil {
		l.fail("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err)
		return defaultValue
	}
	return v
}

// `time.ParseDuration` expects a string like "15m", "1h30s".
func (l *loader) optionalDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		l.fail("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err)
		return defaultValue
	}
	if valueDuration <= 0 {
		l.fail("invalid value for %s: duration must be positive, got '%s'", key, valueStr)
		return defaultValue
	}
	return valueDuration
}

// poolSize reads a pool size and clamps it between 5 and 100.
func (l *loader) poolSize(key string) int {
	size := l.optionalInt(key, 10)
	if size < 5 {
		l.fail("pool size for %s (%d) is less than minimum 5", key, size)
		return 5
	}
	if size > 100 {
		l.fail("pool size for %s (%d) is greater than maximum 100", key, size)
		return 100
	}
	return size
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
func LoadConfig() (*AppConfig, error) {
	l := &loader{}

	storage := strings.ToLower(optional("STORAGE_DRIVER", StoragePostgres))
	if storage != StoragePostgres && storage != StorageMemory {
		l.fail("invalid value for STORAGE_DRIVER: expected %q or %q, got '%s'", StoragePostgres, StorageMemory, storage)
	}

	// Database settings are only mandatory when Postgres is the backing store.
	var dbPools *DatabasePools
	if storage == StoragePostgres {
		dbUser := l.required("DB_USER")
		dbPassword := l.required("DB_PASSWORD")
		dbName := l.required("DB_NAME")
		dbHost := optional("DB_HOST", "localhost")
		dbPort := l.optionalInt("DB_PORT", 5432)

		dbPools = &DatabasePools{
			AppPool: &PoolConfig{
				Host:     dbHost,
				Port:     dbPort,
				User:     dbUser,
				Password: dbPassword,
				DBName:   dbName,
				MaxSize:  l.poolSize("DB_APP_POOL_SIZE"),
			},
			JobPool: &PoolConfig{
				Host:     dbHost,
				Port:     dbPort,
				User:     dbUser,
				Password: dbPassword,
				DBName:   dbName,
				MaxSize:  l.poolSize("DB_JOB_POOL_SIZE"),
			},
		}
	}

	authConfig := &AuthConfig{
		JWTSecret:            l.required("JWT_SECRET"),
		AccessTokenDuration:  l.optionalDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute),
		RefreshTokenDuration: l.optionalDuration("JWT_REFRESH_TOKEN_DURATION", 168*time.Hour), // 7 days
	}

	serverConfig := &ServerConfig{
		Port:           optional("PORT", "8080"),
		RateLimitRPS:   l.optionalFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: l.optionalInt("RATE_LIMIT_BURST", 20),
	}

	sweeperConfig := &SweeperConfig{
		Interval: l.optionalDuration("SWEEP_INTERVAL", time.Hour),
		MaxAge:   l.optionalDuration("POST_MAX_AGE", 24*time.Hour),
		Lock:     strings.ToLower(optional("SWEEP_LOCK", SweepLockNone)),
		RedisURL: optional("REDIS_URL", ""),
	}
	switch sweeperConfig.Lock {
	case SweepLockNone:
	case SweepLockPostgres:
		if storage != StoragePostgres {
			l.fail("SWEEP_LOCK=postgres requires STORAGE_DRIVER=postgres")
		}
	case SweepLockRedis:
		if sweeperConfig.RedisURL == "" {
			l.fail("SWEEP_LOCK=redis requires REDIS_URL")
		}
	default:
		l.fail("invalid value for SWEEP_LOCK: got '%s'", sweeperConfig.Lock)
	}

	eventsConfig := &EventsConfig{
		NATSURL:       optional("NATS_URL", ""),
		SubjectPrefix: optional("NATS_SUBJECT_PREFIX", "blog"),
	}

	logConfig := &LogConfig{
		File:       optional("LOG_FILE", ""),
		MaxSizeMB:  l.optionalInt("LOG_MAX_SIZE_MB", 50),
		MaxBackups: l.optionalInt("LOG_MAX_BACKUPS", 3),
	}

	if err := l.errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("configuration errors: %w", err)
	}

	return &AppConfig{
		Storage:       storage,
		MigrationsDir: optional("MIGRATIONS_DIR", "./migrations"),
		RunMigrations: l.optionalBool("RUN_MIGRATIONS", true),
		DBPools:       dbPools,
		Auth:          authConfig,
		Server:        serverConfig,
		Sweeper:       sweeperConfig,
		Events:        eventsConfig,
		Log:           logConfig,
	}, nil
}
