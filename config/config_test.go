package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORAGE_DRIVER", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_HOST", "DB_PORT",
		"DB_APP_POOL_SIZE", "DB_JOB_POOL_SIZE", "JWT_SECRET", "JWT_ACCESS_TOKEN_DURATION",
		"JWT_REFRESH_TOKEN_DURATION", "PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"SWEEP_INTERVAL", "POST_MAX_AGE", "SWEEP_LOCK", "REDIS_URL", "NATS_URL",
		"NATS_SUBJECT_PREFIX", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS",
		"MIGRATIONS_DIR", "RUN_MIGRATIONS",
	} {
		// Setenv registers the restore; Unsetenv then makes the key absent.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigMemoryDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Nil(t, cfg.DBPools)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Sweeper.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.MaxAge)
	assert.Equal(t, SweepLockNone, cfg.Sweeper.Lock)
	assert.Equal(t, "blog", cfg.Events.SubjectPrefix)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadConfigPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "blog")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "blog")
	t.Setenv("DB_JOB_POOL_SIZE", "20")
	t.Setenv("SWEEP_LOCK", "postgres")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "localhost", cfg.DBPools.AppPool.Host)
	assert.Equal(t, 5432, cfg.DBPools.AppPool.Port)
	assert.Equal(t, 10, cfg.DBPools.AppPool.MaxSize)
	assert.Equal(t, 20, cfg.DBPools.JobPool.MaxSize)
	assert.Equal(t, SweepLockPostgres, cfg.Sweeper.Lock)
}

func TestLoadConfigReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_APP_POOL_SIZE", "2")
	t.Setenv("POST_MAX_AGE", "-1h")
	t.Setenv("RATE_LIMIT_RPS", "fast")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"DB_USER", "DB_PASSWORD", "DB_NAME", "JWT_SECRET", "DB_APP_POOL_SIZE", "POST_MAX_AGE", "RATE_LIMIT_RPS"} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadConfigSweepLockChecks(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres lock on memory", map[string]string{"SWEEP_LOCK": "postgres"}, "requires STORAGE_DRIVER=postgres"},
		{"redis lock without url", map[string]string{"SWEEP_LOCK": "redis"}, "requires REDIS_URL"},
		{"unknown lock", map[string]string{"SWEEP_LOCK": "etcd"}, "invalid value for SWEEP_LOCK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("STORAGE_DRIVER", "memory")
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigRedisLock(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SWEEP_LOCK", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SweepLockRedis, cfg.Sweeper.Lock)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Sweeper.RedisURL)
}
