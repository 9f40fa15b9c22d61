package config

import (
	"strings"
	"time"
)

// Bucket bounds for the lock and booking routes.  A holder locks a seat,
// refreshes it a few times while paying and confirms it once, so a few
// dozen calls per minute already covers a seat map being clicked through.
const (
	defaultBucketCapacity = 30
	maxBucketCapacity     = 600
	defaultRefillInterval = 2 * time.Second
)

var rateKeyStrategies = map[string]bool{
	"ip": true, "user": true, "route": true,
	"ip_user": true, "ip_route": true, "user_route": true, "ip_user_route": true,
}

// RateLimitConfig drives the Redis token bucket in front of the lock and
// booking routes.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* and clamps the result.  The
// bucket TTL never drops below seatLockTTL, so a holder's spent budget
// outlives any seat lock they took with it.
func LoadRateLimitConfig(seatLockTTL time.Duration) RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", defaultBucketCapacity),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", defaultRefillInterval),
		TTL:            envDur("RATE_LIMIT_TTL", seatLockTTL),
		KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		rl.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		rl.RefillTokens = 1
		rl.RefillInterval = every
	}

	switch {
	case rl.Capacity < 1:
		rl.Capacity = 1
	case rl.Capacity > maxBucketCapacity:
		rl.Capacity = maxBucketCapacity
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillTokens > rl.Capacity {
		rl.RefillTokens = rl.Capacity
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = defaultRefillInterval
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	if rl.TTL < seatLockTTL {
		rl.TTL = seatLockTTL
	}
	if !rateKeyStrategies[rl.KeyStrategy] {
		rl.KeyStrategy = "ip_user_route"
	}
	return rl
}
