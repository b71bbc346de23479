// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/store"
)

// Page is one cached page of a list query.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// ListCache caches public list pages per content type. Every record
// mutation drops all pages of its type before the mutating call returns.
//
// Pages are keyed by a per-type generation. When the backend implements
// Counters the generation lives there, so an invalidation on one server
// instance also retires pages another instance is still computing.
type ListCache struct {
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
	shared Counters

	// gens counts invalidations per type when the backend has no counters.
	gens map[model.ContentType]*atomic.Int64
}

// NewListCache creates a list cache over cache.
func NewListCache(cache Cache, ttl time.Duration, logger *slog.Logger) *ListCache {
	gens := make(map[model.ContentType]*atomic.Int64, len(model.ContentTypes))
	for _, t := range model.ContentTypes {
		gens[t] = new(atomic.Int64)
	}
	shared, _ := cache.(Counters)
	return &ListCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "list_cache"),
		shared: shared,
		gens:   gens,
	}
}

func listPrefix(t model.ContentType) string {
	return "list:" + string(t) + ":"
}

// genKey sits outside listPrefix so invalidation never resets it.
func genKey(t model.ContentType) string {
	return "listgen:" + string(t)
}

func listKey(t model.ContentType, gen int64, f store.ListFilter) string {
	return fmt.Sprintf("%sg=%d;p=%t;c=%s;m=%s;u=%t;l=%d;o=%d", listPrefix(t), gen,
		f.PublishedOnly, f.Category, f.Committee, f.Upcoming, f.Limit, f.Offset)
}

// generation returns the current generation of t, read from the backend
// when it keeps counters.
func (l *ListCache) generation(ctx context.Context, t model.ContentType) (int64, error) {
	if l.shared != nil {
		return l.shared.Counter(ctx, genKey(t))
	}
	return l.gens[t].Load(), nil
}

// Invalidate drops every cached page of t.
func (l *ListCache) Invalidate(ctx context.Context, t model.ContentType) {
	if l.shared != nil {
		if _, err := l.shared.Incr(ctx, genKey(t)); err != nil {
			l.logger.Warn("failed to bump list generation", "type", t, "error", err)
		}
	} else if g, ok := l.gens[t]; ok {
		g.Add(1)
	}
	if err := l.cache.DeleteByPrefix(ctx, listPrefix(t)); err != nil {
		l.logger.Warn("failed to invalidate list cache", "type", t, "error", err)
	}
}

// Hook returns a record store change hook that invalidates the changed type.
func (l *ListCache) Hook() func(ctx context.Context, c model.Change) {
	return func(ctx context.Context, c model.Change) {
		l.Invalidate(context.WithoutCancel(ctx), c.Type)
	}
}

// LoadList returns the cached page for (t, f) or loads and caches it.
// Upcoming event lists depend on the current time and are never cached.
// When the generation cannot be read the page is loaded uncached.
func LoadList[T any](ctx context.Context, l *ListCache, t model.ContentType, f store.ListFilter, load func() ([]T, int64, error)) ([]T, int64, error) {
	fetch := func() (*Page[T], error) {
		items, total, err := load()
		if err != nil {
			return nil, err
		}
		return &Page[T]{Items: items, Total: total}, nil
	}
	direct := func() ([]T, int64, error) {
		p, err := fetch()
		if err != nil {
			return nil, 0, err
		}
		return p.Items, p.Total, nil
	}
	if l == nil || f.Upcoming {
		return direct()
	}

	if _, ok := l.gens[t]; !ok {
		return nil, 0, fmt.Errorf("unknown content type %q", t)
	}
	before, err := l.generation(ctx, t)
	if err != nil {
		l.logger.Warn("failed to read list generation", "type", t, "error", err)
		return direct()
	}
	unchanged := func() bool {
		now, err := l.generation(ctx, t)
		return err == nil && now == before
	}
	tc := NewTypedCache[Page[T]](l.cache, l.ttl)
	p, err := tc.GetOrSet(ctx, listKey(t, before, f), fetch, unchanged)
	if err != nil {
		return nil, 0, err
	}
	return p.Items, p.Total, nil
}
