// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/clubcms/internal/auth"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/session"
)

// LoginRequest represents the request body for signing in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		WriteValidationError(w, map[string]string{"credentials": "email and password are required"})
		return
	}

	if locked, remaining := h.guard.IsAccountLocked(email); locked {
		h.logger.Warn("login attempt on locked account", "email", email, "category", model.AuditCategoryAuth)
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			"Too many failed attempts. Please try again later.",
			map[string]string{"retry_after": remaining.Round(time.Second).String()})
		return
	}

	principal, err := h.verifier.Verify(ctx, email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.guard.RecordFailedAttempt(email)
		h.logger.Warn("failed login attempt", "email", email, "category", model.AuditCategoryAuth)
		WriteUnauthorized(w, "Invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("failed to verify credentials", "error", err)
		WriteInternalError(w, "Failed to sign in")
		return
	}

	h.guard.RecordSuccessfulLogin(email)
	if err := session.Login(ctx, h.sessions, principal.Email); err != nil {
		h.logger.Error("failed to start session", "error", err)
		WriteInternalError(w, "Failed to sign in")
		return
	}

	h.logger.Info("author signed in", "email", principal.Email)
	WriteSuccess(w, principal, nil)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	email := middleware.Author(r)
	if err := session.Logout(r.Context(), h.sessions); err != nil {
		h.logger.Error("failed to end session", "error", err)
		WriteInternalError(w, "Failed to sign out")
		return
	}
	if email != "" {
		h.logger.Info("author signed out", "email", email)
	}
	WriteSuccess(w, map[string]bool{"signed_out": true}, nil)
}
