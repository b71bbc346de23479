// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/store"
)

func newTestLists(t *testing.T) *ListCache {
	t.Helper()
	return NewListCache(newTestMemory(t, 0), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func countingLoader(calls *int, items ...string) func() ([]string, int64, error) {
	return func() ([]string, int64, error) {
		*calls++
		return items, int64(len(items)), nil
	}
}

func TestListCache_CachesPerFilter(t *testing.T) {
	lc := newTestLists(t)
	ctx := context.Background()
	calls := 0
	load := countingLoader(&calls, "a", "b")

	public := store.ListFilter{PublishedOnly: true, Limit: 10}
	items, total, err := LoadList(ctx, lc, model.TypeNews, public, load)
	if err != nil {
		t.Fatalf("LoadList failed: %v", err)
	}
	if len(items) != 2 || total != 2 {
		t.Errorf("unexpected page %v total=%d", items, total)
	}
	_, _, _ = LoadList(ctx, lc, model.TypeNews, public, load)
	if calls != 1 {
		t.Errorf("expected cached second load, got %d calls", calls)
	}

	// A different page is a different key.
	_, _, _ = LoadList(ctx, lc, model.TypeNews, store.ListFilter{PublishedOnly: true, Limit: 10, Offset: 10}, load)
	if calls != 2 {
		t.Errorf("expected separate key per offset, got %d calls", calls)
	}
}

func TestListCache_InvalidateIsPerType(t *testing.T) {
	lc := newTestLists(t)
	ctx := context.Background()
	newsCalls, eventCalls := 0, 0
	f := store.ListFilter{PublishedOnly: true}

	_, _, _ = LoadList(ctx, lc, model.TypeNews, f, countingLoader(&newsCalls, "n"))
	_, _, _ = LoadList(ctx, lc, model.TypeEvents, f, countingLoader(&eventCalls, "e"))

	lc.Hook()(ctx, model.Change{Type: model.TypeNews, Op: model.OpInsert, ID: 1})

	_, _, _ = LoadList(ctx, lc, model.TypeNews, f, countingLoader(&newsCalls, "n"))
	_, _, _ = LoadList(ctx, lc, model.TypeEvents, f, countingLoader(&eventCalls, "e"))
	if newsCalls != 2 {
		t.Errorf("expected news reload after invalidation, got %d calls", newsCalls)
	}
	if eventCalls != 1 {
		t.Errorf("expected events to stay cached, got %d calls", eventCalls)
	}
}

func TestListCache_InvalidationDuringLoadIsNotStored(t *testing.T) {
	lc := newTestLists(t)
	ctx := context.Background()
	f := store.ListFilter{PublishedOnly: true}

	stale := func() ([]string, int64, error) {
		// A write lands while the page is being read.
		lc.Invalidate(ctx, model.TypeGallery)
		return []string{"old"}, 1, nil
	}
	items, _, _ := LoadList(ctx, lc, model.TypeGallery, f, stale)
	if len(items) != 1 || items[0] != "old" {
		t.Fatalf("expected computed page to be returned, got %v", items)
	}

	calls := 0
	items, _, _ = LoadList(ctx, lc, model.TypeGallery, f, countingLoader(&calls, "new"))
	if calls != 1 || items[0] != "new" {
		t.Errorf("expected stale page to be skipped, got calls=%d items=%v", calls, items)
	}
}

func TestListCache_InvalidationOnAnotherInstanceIsNotStored(t *testing.T) {
	backend := newTestMemory(t, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := NewListCache(backend, time.Minute, logger)
	writer := NewListCache(backend, time.Minute, logger)
	ctx := context.Background()
	f := store.ListFilter{PublishedOnly: true}

	stale := func() ([]string, int64, error) {
		// Another instance commits a write while this one reads the page.
		writer.Invalidate(ctx, model.TypeNews)
		return []string{"old"}, 1, nil
	}
	items, _, _ := LoadList(ctx, reader, model.TypeNews, f, stale)
	if len(items) != 1 || items[0] != "old" {
		t.Fatalf("expected computed page to be returned, got %v", items)
	}

	calls := 0
	items, _, _ = LoadList(ctx, reader, model.TypeNews, f, countingLoader(&calls, "new"))
	if calls != 1 || items[0] != "new" {
		t.Errorf("expected stale page to be skipped, got calls=%d items=%v", calls, items)
	}
	_, _, _ = LoadList(ctx, writer, model.TypeNews, f, countingLoader(&calls, "new"))
	if calls != 1 {
		t.Errorf("expected both instances to share the fresh page, got %d calls", calls)
	}
}

func TestListCache_UpcomingBypassesCache(t *testing.T) {
	lc := newTestLists(t)
	ctx := context.Background()
	calls := 0
	f := store.ListFilter{PublishedOnly: true, Upcoming: true}

	_, _, _ = LoadList(ctx, lc, model.TypeEvents, f, countingLoader(&calls, "e"))
	_, _, _ = LoadList(ctx, lc, model.TypeEvents, f, countingLoader(&calls, "e"))
	if calls != 2 {
		t.Errorf("expected upcoming lists to bypass the cache, got %d calls", calls)
	}
}

func TestListCache_NilPassesThrough(t *testing.T) {
	calls := 0
	_, _, err := LoadList[string](context.Background(), nil, model.TypeNews, store.ListFilter{}, countingLoader(&calls, "a"))
	if err != nil || calls != 1 {
		t.Errorf("expected direct load, got calls=%d err=%v", calls, err)
	}
}

func TestListCache_LoadErrorNotCached(t *testing.T) {
	lc := newTestLists(t)
	ctx := context.Background()
	boom := errors.New("database is locked")
	f := store.ListFilter{}

	_, _, err := LoadList(ctx, lc, model.TypeLeadership, f, func() ([]string, int64, error) { return nil, 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	calls := 0
	_, _, _ = LoadList(ctx, lc, model.TypeLeadership, f, countingLoader(&calls, "x"))
	if calls != 1 {
		t.Errorf("expected reload after failed load, got %d calls", calls)
	}
}
