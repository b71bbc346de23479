// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the byte-level cache backends and the public list
// cache built on them.
package cache

import (
	"context"
	"time"
)

// Cache is implemented by every backend. All implementations must be
// thread-safe. Values are opaque bytes so Redis and memory behave alike.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// Counters is an optional interface for caches that hold integer counters
// visible to every process sharing the backend.
type Counters interface {
	// Incr atomically adds one to key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Counter returns the value of key, or zero if it was never incremented.
	Counter(ctx context.Context, key string) (int64, error)
}

// StatsProvider is an optional interface for caches that provide statistics.
type StatsProvider interface {
	Stats() Stats
	ResetStats()
}

// Stats holds cache statistics.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hit_rate"`
	Size    int64   `json:"size_bytes,omitempty"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
