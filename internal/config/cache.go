package config

import (
    "time"
)

// CacheConfig controls the Redis response cache in front of zone images.
// Entries are keyed by method and request path and are purged when a new
// image is uploaded, so TTL only bounds how long an unused image lingers.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads WARP_CACHE_* variables, using defaults for the rest.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 10*time.Minute),
        Prefix:       envStr("CACHE_PREFIX", "warp:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 2*1024*1024),
    }
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    return cfg
}
