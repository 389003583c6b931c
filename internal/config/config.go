// Package config loads runtime configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config collects every knob the server reads at startup.  Secrets and
// identifiers stay strings; durations and amounts are plain ints in the
// unit their name states.
type Config struct {
	Env       string // deployment environment: dev, test or prod
	Port      string // HTTP listen port
	DBUser    string // MySQL user
	DBPass    string // MySQL password, may be empty for local setups
	DBHost    string // MySQL host
	DBPort    string // MySQL port
	DBName    string // MySQL schema name
	JWTSecret string // HS256 signing secret for access tokens

	AccessTTLMin int // access token lifetime in minutes
	BcryptCost   int // bcrypt work factor for password hashing

	PaymentKeyID         string // gateway API key id (basic auth user)
	PaymentKeySecret     string // gateway API key secret (basic auth password)
	PaymentWebhookSecret string // shared secret for webhook HMAC verification

	SeatLockTTLSeconds   int // TTL of a Redis seat lock key
	BookingHoldMinutes   int // how long a PENDING booking holds its seats
	SweepIntervalSeconds int // period of the booking expiry sweeper
	SeatPriceCents       int // flat per-seat price in minor currency units
}

// Load reads the environment into a Config.  Variables without a default
// are required: a missing one aborts startup with a fatal log, which beats
// discovering a half-configured server at request time.  The timing knobs
// default to a 120 second seat lock, a 5 minute hold window and a 60
// second sweep.
func Load() Config {
	return Config{
		Env:       requireEnv("APP_ENV"),
		Port:      requireEnv("APP_PORT"),
		DBUser:    requireEnv("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    requireEnv("DB_HOST"),
		DBPort:    requireEnv("DB_PORT"),
		DBName:    requireEnv("DB_NAME"),
		JWTSecret: requireEnv("JWT_SECRET"),

		AccessTTLMin: requireEnvInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   requireEnvInt("BCRYPT_COST"),

		PaymentKeyID:         requireEnv("PAYMENT_KEY_ID"),
		PaymentKeySecret:     requireEnv("PAYMENT_KEY_SECRET"),
		PaymentWebhookSecret: requireEnv("PAYMENT_WEBHOOK_SECRET"),

		SeatLockTTLSeconds:   envIntDefault("SEAT_LOCK_TTL_SECONDS", 120),
		BookingHoldMinutes:   envIntDefault("BOOKING_HOLD_MINUTES", 5),
		SweepIntervalSeconds: envIntDefault("SWEEP_INTERVAL_SECONDS", 60),
		SeatPriceCents:       envIntDefault("SEAT_PRICE_CENTS", 1000),
	}
}

// requireEnv returns the named variable or aborts when it is unset or
// blank.
func requireEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// requireEnvInt is requireEnv with an integer conversion; a value that does
// not parse also aborts.
func requireEnvInt(key string) int {
	s := requireEnv(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envIntDefault reads an optional integer variable.  Unset, malformed or
// sub-one values fall back to the default so a bad knob can never disable
// a timeout entirely.
func envIntDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
