// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLoginProtection(t *testing.T, maxAttempts int) (*LoginProtection, *testClock) {
	t.Helper()
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       10,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   time.Minute,
		AttemptWindow:     10 * time.Minute,
	}, discardLogger())
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	lp.now = clock.Now
	t.Cleanup(lp.Close)
	return lp, clock
}

func TestDefaultLoginProtectionConfig(t *testing.T) {
	cfg := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit != 0.5 || cfg.IPBurst != 5 || cfg.MaxFailedAttempts != 5 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.LockoutDuration != 15*time.Minute || cfg.AttemptWindow != 15*time.Minute {
		t.Errorf("unexpected durations %+v", cfg)
	}
}

func TestLoginProtection_LocksAfterMaxAttempts(t *testing.T) {
	lp, clock := newTestLoginProtection(t, 3)
	email := "secretary@club.test"

	for i := range 2 {
		if locked, _ := lp.RecordFailedAttempt(email); locked {
			t.Fatalf("locked after %d attempts", i+1)
		}
	}
	if got := lp.RemainingAttempts(email); got != 1 {
		t.Errorf("RemainingAttempts = %d, want 1", got)
	}

	locked, d := lp.RecordFailedAttempt(email)
	if !locked || d != time.Minute {
		t.Fatalf("third attempt: locked=%v duration=%v", locked, d)
	}
	if locked, remaining := lp.IsAccountLocked(email); !locked || remaining != time.Minute {
		t.Errorf("IsAccountLocked = %v, %v", locked, remaining)
	}

	clock.Advance(61 * time.Second)
	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Error("lock should have expired")
	}
}

func TestLoginProtection_ExponentialBackoff(t *testing.T) {
	lp, clock := newTestLoginProtection(t, 1)
	email := "treasurer@club.test"

	// With max=1 the first failure only starts the window.
	lp.RecordFailedAttempt(email)
	want := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}
	for i, w := range want {
		locked, d := lp.RecordFailedAttempt(email)
		if !locked || d != w {
			t.Fatalf("lockout %d: locked=%v duration=%v, want %v", i+1, locked, d, w)
		}
		clock.Advance(d + time.Second)
	}
}

func TestLoginProtection_WindowResets(t *testing.T) {
	lp, clock := newTestLoginProtection(t, 3)
	email := "chair@club.test"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	clock.Advance(11 * time.Minute)

	if locked, _ := lp.RecordFailedAttempt(email); locked {
		t.Error("attempt after window should start a new count")
	}
	if got := lp.RemainingAttempts(email); got != 2 {
		t.Errorf("RemainingAttempts = %d, want 2", got)
	}
}

func TestLoginProtection_SuccessClears(t *testing.T) {
	lp, _ := newTestLoginProtection(t, 3)
	email := "secretary@club.test"

	lp.RecordFailedAttempt(email)
	lp.RecordSuccessfulLogin(email)
	if got := lp.RemainingAttempts(email); got != 3 {
		t.Errorf("RemainingAttempts = %d, want 3", got)
	}
}

func TestLoginProtection_CleanupStaleEntries(t *testing.T) {
	lp, clock := newTestLoginProtection(t, 3)
	lp.RecordFailedAttempt("a@club.test")
	clock.Advance(time.Hour)
	lp.cleanupStaleEntries()

	lp.attemptsMu.RLock()
	n := len(lp.failedAttempts)
	lp.attemptsMu.RUnlock()
	if n != 0 {
		t.Errorf("expected stale entries removed, %d left", n)
	}
}

func TestLoginProtection_Middleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 1}, discardLogger())
	t.Cleanup(lp.Close)
	handler := lp.Middleware()(okHandler)

	send := func(method string) int {
		req := httptest.NewRequest(method, "/api/v1/login", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(http.MethodPost); code != http.StatusOK {
		t.Errorf("first POST = %d", code)
	}
	if code := send(http.MethodPost); code != http.StatusTooManyRequests {
		t.Errorf("second POST = %d, want 429", code)
	}
	if code := send(http.MethodGet); code != http.StatusOK {
		t.Errorf("GET = %d, want pass-through", code)
	}
}
