package config

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMySQLEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "showtime")
}

func TestLoadDefaults(t *testing.T) {
	setMySQLEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMySQL, cfg.StoreBackend)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.SeatLockTTL)
	assert.Equal(t, 150*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 30*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, "logs/booking.log", cfg.BookingLogPath)
	assert.False(t, cfg.IsProd())
}

func TestLoadOverrides(t *testing.T) {
	setMySQLEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SEAT_LOCK_TTL", "2m")
	t.Setenv("REAPER_INTERVAL", "5s")
	t.Setenv("AMQP_URL", "amqp://a")
	t.Setenv("RABBITMQ_URL", "amqp://b")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.SeatLockTTL)
	assert.Equal(t, 5*time.Second, cfg.ReaperInterval)
	assert.Equal(t, "amqp://b", cfg.AMQPURL)
	assert.True(t, cfg.IsProd())
}

func TestLoadMemoryBackendNeedsNoDB(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Empty(t, cfg.DBHost)
}

func TestLoadReportsAllProblems(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SEAT_LOCK_TTL", "ten minutes")
	t.Setenv("STORE_BACKEND", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "SEAT_LOCK_TTL", "DB_USER", "DB_NAME"} {
		assert.Contains(t, err.Error(), want)
	}

	t.Setenv("JWT_SECRET", "x")
	t.Setenv("SEAT_LOCK_TTL", "")
	t.Setenv("STORE_BACKEND", "postgres")
	_, err = Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "cookie")

	rl := LoadRateLimitConfig(0)
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 2*time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Second, rl.TTL)
	assert.Equal(t, "ip_user_route", rl.KeyStrategy)

	t.Setenv("RATE_LIMIT_CAPACITY", "100000")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "USER_ROUTE")
	rl = LoadRateLimitConfig(10 * time.Minute)
	assert.Equal(t, maxBucketCapacity, rl.Capacity)
	assert.Equal(t, 10*time.Minute, rl.TTL, "bucket must outlive a seat lock")
	assert.Equal(t, "user_route", rl.KeyStrategy)
}

func TestRateLimitDefaultsFollowSeatLockTTL(t *testing.T) {
	setMySQLEnv(t)
	t.Setenv("SEAT_LOCK_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultBucketCapacity, cfg.RateLimit.Capacity)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.TTL)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := NewRedisClient(RedisConfig{Enabled: true, Addr: mr.Addr()})
	require.NotNil(t, rdb)
	_ = rdb.Close()

	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false, Addr: mr.Addr()}))
	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: true, Addr: addr}))
}
