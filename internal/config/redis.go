package config

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance backing the seat lock and
// the rate limiter.  REDIS_URL takes precedence and accepts the full
// redis:// or rediss:// notation; otherwise the address is assembled from
// REDIS_HOST and REDIS_PORT (or REDIS_ADDR), with REDIS_PASSWORD, REDIS_DB
// and REDIS_TLS as optional extras.  A nil return means Redis is
// unreachable: the rate limiter degrades to pass-through, while main
// refuses to start without the seat lock.
func NewRedisClient() *redis.Client {
	opts, err := redisOptions()
	if err != nil {
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil
	}
	return client
}

func redisOptions() (*redis.Options, error) {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return redis.ParseURL(url)
	}

	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envIntDefault("REDIS_DB", 0),
	}
	if envBoolDefault("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
