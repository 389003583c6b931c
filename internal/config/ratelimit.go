package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig tunes the Redis token bucket guarding the booking
// endpoints.  Seat contention produces bursty retry traffic, so the bucket
// is sized for short bursts with a steady one-token refill.
type RateLimitConfig struct {
	Enabled        bool          // master switch; off means pass-through
	Capacity       int           // bucket size, the largest tolerated burst
	RefillTokens   int           // tokens added per refill interval
	RefillInterval time.Duration // how often tokens are added
	TTL            time.Duration // idle lifetime of a bucket key in Redis
	KeyStrategy    string        // ip, user, route, ip_user or ip_user_route
	Prefix         string        // Redis key namespace
}

// LoadRateLimitConfig reads the limiter knobs from the environment.  All of
// them are optional; unset, malformed or out-of-range values fall back to
// defaults that keep the bucket functional.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBoolDefault("RATE_LIMIT_ENABLED", true),
		Capacity:       envIntDefault("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envIntDefault("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDurationDefault("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDurationDefault("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStringDefault("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStringDefault("RATE_LIMIT_PREFIX", "rl"),
	}
	// A bucket key must outlive several refill intervals, or its state
	// would expire in Redis between refills.
	if min := 5 * cfg.RefillInterval; cfg.TTL < min {
		cfg.TTL = min
	}
	return cfg
}

// envStringDefault reads an optional string environment variable.
func envStringDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envBoolDefault reads an optional boolean environment variable.  Anything
// strconv.ParseBool does not understand falls back to the default.
func envBoolDefault(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return def
	}
	return b
}

// envDurationDefault reads an optional duration environment variable in
// time.ParseDuration notation ("500ms", "2s").  Non-positive values fall
// back to the default.
func envDurationDefault(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
