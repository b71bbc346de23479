// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestMemory(t *testing.T, maxSize int) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: maxSize})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	c := newTestMemory(t, 0)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("expected value1, got %s", val)
	}

	has, err := c.Has(ctx, "key1")
	if err != nil || !has {
		t.Errorf("Has = %v, %v; want true", has, err)
	}

	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "key1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	c := newTestMemory(t, 0)
	ctx := context.Background()

	in := []byte("abc")
	_ = c.Set(ctx, "k", in, 0)
	in[0] = 'x'

	out, _ := c.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value changed through caller slice: %s", out)
	}
	out[0] = 'y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through returned slice: %s", again)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := newTestMemory(t, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected expired entry to miss, got %v", err)
	}
	if has, _ := c.Has(ctx, "short"); has {
		t.Error("expected expired entry to be gone")
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	c := newTestMemory(t, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "list:news:a", []byte("1"), 0)
	_ = c.Set(ctx, "list:news:b", []byte("2"), 0)
	_ = c.Set(ctx, "list:events:a", []byte("3"), 0)

	if err := c.DeleteByPrefix(ctx, "list:news:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	for _, k := range []string{"list:news:a", "list:news:b"} {
		if has, _ := c.Has(ctx, k); has {
			t.Errorf("expected %s to be removed", k)
		}
	}
	if has, _ := c.Has(ctx, "list:events:a"); !has {
		t.Error("expected list:events:a to survive")
	}
}

func TestMemoryCache_MaxSize(t *testing.T) {
	c := newTestMemory(t, 3)
	ctx := context.Background()

	for i := range 10 {
		_ = c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
	}
	if n := c.Stats().Items; n > 3 {
		t.Errorf("expected at most 3 items, got %d", n)
	}
	// Overwriting an existing key never evicts.
	_ = c.Set(ctx, "k9", []byte("w"), 0)
	if v, err := c.Get(ctx, "k9"); err != nil || string(v) != "w" {
		t.Errorf("Get(k9) = %q, %v", v, err)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := newTestMemory(t, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("12345"), 0)
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.HitRate != 50 {
		t.Errorf("expected hit rate 50, got %v", s.HitRate)
	}
	if s.Size != 5 {
		t.Errorf("expected size 5, got %d", s.Size)
	}

	_ = c.Clear(ctx)
	c.ResetStats()
	s = c.Stats()
	if s.Items != 0 || s.Size != 0 || s.Hits != 0 {
		t.Errorf("expected empty stats after clear, got %+v", s)
	}
}

func TestMemoryCache_CountersSurviveClear(t *testing.T) {
	c := newTestMemory(t, 1)
	ctx := context.Background()

	if n, err := c.Counter(ctx, "gen"); err != nil || n != 0 {
		t.Errorf("Counter before Incr = %d, %v; want 0", n, err)
	}
	for want := int64(1); want <= 2; want++ {
		if n, _ := c.Incr(ctx, "gen"); n != want {
			t.Errorf("Incr = %d, want %d", n, want)
		}
	}
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Clear(ctx)
	if n, _ := c.Counter(ctx, "gen"); n != 2 {
		t.Errorf("Counter after eviction and Clear = %d, want 2", n)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute, CleanupInterval: time.Millisecond})
	_ = c.Close()
	_ = c.Close()

	ctx := context.Background()
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after close: %v", err)
	}
	if err := c.Set(ctx, "k", nil, 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after close: %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := newTestMemory(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 200 {
				key := fmt.Sprintf("g%d-%d", g, i%20)
				_ = c.Set(ctx, key, []byte(key), 0)
				_, _ = c.Get(ctx, key)
				if i%7 == 0 {
					_ = c.DeleteByPrefix(ctx, fmt.Sprintf("g%d-", g))
				}
			}
		})
	}
	wg.Wait()

	if c.Stats().Size < 0 {
		t.Errorf("size accounting went negative: %d", c.Stats().Size)
	}
}

func TestNew_Memory(t *testing.T) {
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = c.Close() }()
	if _, ok := c.(*MemoryCache); !ok {
		t.Fatalf("expected *MemoryCache, got %T", c)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memcached"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
