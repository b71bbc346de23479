// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/olegiv/clubcms/internal/store"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "session-test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name       string
		isDev      bool
		wantSecure bool
	}{
		{"development", true, false},
		{"production", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := New(db, tt.isDev)
			if sm.Cookie.Secure != tt.wantSecure {
				t.Errorf("Cookie.Secure = %v, want %v", sm.Cookie.Secure, tt.wantSecure)
			}
			if !sm.Cookie.HttpOnly {
				t.Error("Cookie.HttpOnly = false")
			}
			if sm.Cookie.SameSite != http.SameSiteLaxMode {
				t.Errorf("Cookie.SameSite = %v", sm.Cookie.SameSite)
			}
			if sm.Lifetime != Lifetime {
				t.Errorf("Lifetime = %v", sm.Lifetime)
			}
		})
	}
}

func TestLoginRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	sm := New(db, true)

	login := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Login(r.Context(), sm, "secretary@club.test"); err != nil {
			t.Errorf("Login: %v", err)
		}
	}))
	whoami := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Author(r.Context(), sm)))
	}))
	logout := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Logout(r.Context(), sm); err != nil {
			t.Errorf("Logout: %v", err)
		}
	}))

	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != CookieName {
		t.Fatalf("expected %s cookie, got %v", CookieName, cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	whoami.ServeHTTP(rec, req)
	if got := rec.Body.String(); got != "secretary@club.test" {
		t.Errorf("Author = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookies[0])
	logout.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	whoami.ServeHTTP(rec, req)
	if got := rec.Body.String(); got != "" {
		t.Errorf("Author after logout = %q", got)
	}
}
