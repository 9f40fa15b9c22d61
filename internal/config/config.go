package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	StoreBackend string // "mysql" or "memory"
	LogLevel     string // logrus level name

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret    string // secret used to verify bearer tokens
	AccessTTLMin int    // lifetime of tokens minted by cmd/issue-token, in minutes

	SeatLockTTL    time.Duration // lifetime of a seat lock
	ReaperInterval time.Duration // expiry sweep period, TTL/4 unless set
	IdempotencyTTL time.Duration // how long replay records are cached
	HandlerTimeout time.Duration // per-request deadline

	AMQPURL        string // broker URL; empty disables booking events
	BookingLogPath string // file the booking consumer appends to

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// Load reads configuration values from environment variables.  Missing
// required variables and malformed values are reported together.
func Load() (Config, error) {
	var errs []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	mustInt := func(key string, def int) int {
		s := os.Getenv(key)
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid int for %s: %q", key, s))
		}
		return n
	}
	mustDur := func(key string, def time.Duration) time.Duration {
		s := os.Getenv(key)
		if s == "" {
			return def
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %q", key, s))
		}
		return d
	}

	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		StoreBackend: strings.ToLower(envStr("STORE_BACKEND", StoreMySQL)),
		LogLevel:     envStr("LOG_LEVEL", "info"),

		DBPass: os.Getenv("DB_PASS"),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN", 60),

		SeatLockTTL:    mustDur("SEAT_LOCK_TTL", 10*time.Minute),
		IdempotencyTTL: mustDur("IDEMPOTENCY_TTL", 24*time.Hour),
		HandlerTimeout: mustDur("HANDLER_TIMEOUT", 30*time.Second),

		AMQPURL:        envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		BookingLogPath: envStr("BOOKING_LOG_PATH", "logs/booking.log"),

		Redis: LoadRedisConfig(),
		Cache: LoadCacheConfig(),
	}
	cfg.ReaperInterval = mustDur("REAPER_INTERVAL", cfg.SeatLockTTL/4)
	cfg.RateLimit = LoadRateLimitConfig(cfg.SeatLockTTL)

	switch cfg.StoreBackend {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_BACKEND %q (want mysql or memory)", cfg.StoreBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}
