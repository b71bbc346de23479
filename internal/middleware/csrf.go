// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"
)

// CSRFConfig holds configuration for CSRF protection.
// filippo.io/csrf/gorilla checks Fetch metadata headers, so there is no
// token cookie to configure.
type CSRFConfig struct {
	// AuthKey is a 32-byte key. The session secret is used.
	AuthKey []byte

	// TrustedOrigins are host values allowed to make cross-origin requests.
	TrustedOrigins []string

	Logger *slog.Logger
}

// DefaultCSRFConfig returns a CSRFConfig with sensible defaults.
func DefaultCSRFConfig(authKey []byte, isDev bool, logger *slog.Logger) CSRFConfig {
	cfg := CSRFConfig{AuthKey: authKey, Logger: logger}
	if isDev {
		cfg.TrustedOrigins = []string{"localhost:8080", "127.0.0.1:8080"}
	}
	return cfg
}

// CSRF rejects cross-site state-changing requests with a JSON 403.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []csrf.Option{
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := "unknown"
			if err := csrf.FailureReason(r); err != nil {
				reason = err.Error()
			}
			logger.Warn("CSRF validation failed",
				"category", "security",
				"reason", reason,
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
			)
			WriteAPIError(w, http.StatusForbidden, "csrf_failed", "Cross-site request rejected", nil)
		})),
	}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}
