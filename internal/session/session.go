// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session manages authoring sessions stored in SQLite.
package session

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	KeyEmail = "author_email"
)

// CookieName is the session cookie name.
const CookieName = "clubcms_session"

// Lifetime is the absolute session lifetime.
const Lifetime = 12 * time.Hour

// New creates a session manager backed by the sessions table of db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = Lifetime
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm
}

// Login starts an authenticated session for email. The token is renewed
// to prevent session fixation.
func Login(ctx context.Context, sm *scs.SessionManager, email string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, KeyEmail, email)
	return nil
}

// Logout ends the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// Author returns the email of the signed-in author, or "" when anonymous.
func Author(ctx context.Context, sm *scs.SessionManager) string {
	return sm.GetString(ctx, KeyEmail)
}
