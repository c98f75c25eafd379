package config

// Redis backs the login rate limiter and the zone image cache.  Both
// degrade gracefully: with no reachable server the limiter falls back to
// an in-process bucket and the cache is skipped.

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	Addr     string // host:port; empty disables Redis entirely
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig reads the connection settings.  Supported variables are:
//   WARP_REDIS_HOST and WARP_REDIS_PORT – hostname and port of the server
//   WARP_REDIS_ADDR – host:port shorthand, used when host/port are not both set
//   WARP_REDIS_PASSWORD – optional password
//   WARP_REDIS_DB – database number (default 0)
//   WARP_REDIS_TLS – enable TLS when "true" or "1"
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "")
	host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", "6379")
	if host != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// NewRedisClient connects and pings the server.  It returns nil when Redis
// is not configured or the ping fails, and callers treat nil as "no Redis".
func NewRedisClient(cfg RedisConfig, log *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without it", "addr", cfg.Addr, "err", err)
		_ = client.Close()
		return nil
	}
	return client
}
