// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TypedCache stores JSON-encoded values of one type in a Cache.
type TypedCache[T any] struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewTypedCache wraps cache.
func NewTypedCache[T any](cache Cache, defaultTTL time.Duration) *TypedCache[T] {
	return &TypedCache[T]{cache: cache, defaultTTL: defaultTTL}
}

// Get returns the cached value and true, or false on a miss or a value
// that no longer decodes.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return &value, true
}

// Set stores value with the default TTL.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, data, c.defaultTTL)
}

// Delete removes a key.
func (c *TypedCache[T]) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

// GetOrSet returns the cached value or computes, stores and returns it.
// keep decides whether a computed value may be stored; it lets callers
// skip values that went stale while being computed.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, key string, fn func() (*T, error), keep func() bool) (*T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}
	value, err := fn()
	if err != nil {
		return nil, err
	}
	if keep == nil || keep() {
		// A failed store only costs a later recompute.
		_ = c.Set(ctx, key, value)
	}
	return value, nil
}
