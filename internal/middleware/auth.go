// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/clubcms/internal/session"
)

// ContextKeyAuthor holds the signed-in author's email.
const ContextKeyAuthor ContextKey = "author"

// LoadAuthor puts the signed-in author, if any, into the request context.
// It must run inside sm.LoadAndSave.
func LoadAuthor(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email := session.Author(r.Context(), sm); email != "" {
				r = r.WithContext(context.WithValue(r.Context(), ContextKeyAuthor, email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthor rejects requests without an authoring session with 401.
// It must run after LoadAuthor.
func RequireAuthor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Author(r) == "" {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Sign in required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Author returns the signed-in author's email, or "" for anonymous requests.
func Author(r *http.Request) string {
	email, _ := r.Context().Value(ContextKeyAuthor).(string)
	return email
}

// WithAuthor returns ctx carrying email as the signed-in author.
func WithAuthor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextKeyAuthor, email)
}
