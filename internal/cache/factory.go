// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"time"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string

	// RedisURL is the Redis connection URL (only for redis)
	RedisURL string

	// Prefix is the key prefix for Redis
	Prefix string

	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for memory cache (0 = unlimited)
	MaxSize int

	CleanupInterval time.Duration
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New creates the configured backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case BackendRedis:
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		c, err := NewRedisCache(opts)
		if err != nil {
			return nil, fmt.Errorf("connecting redis cache: %w", err)
		}
		return c, nil
	case BackendMemory, "":
		return NewMemoryCache(MemoryCacheOptions{
			DefaultTTL:      cfg.DefaultTTL,
			MaxSize:         cfg.MaxSize,
			CleanupInterval: cfg.CleanupInterval,
		}), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
