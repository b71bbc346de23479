// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCredentials is returned for any failed login. It never says
// which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is an authenticated author.
type Principal struct {
	Email string `json:"email"`
}

// Verifier checks login credentials.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (Principal, error)
}

// StaticVerifier accepts the single configured authoring account.
type StaticVerifier struct {
	email string
	hash  string
	// dummy is checked for unknown emails so both paths cost one argon2 run.
	dummy string
}

// NewStaticVerifier creates a verifier for one account. An empty email
// yields a verifier that rejects every login.
func NewStaticVerifier(email, passwordHash string) (*StaticVerifier, error) {
	if email != "" {
		if _, err := parseHash(passwordHash); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
	}
	dummy, err := HashPassword("clubcms-unused-password")
	if err != nil {
		return nil, err
	}
	return &StaticVerifier{
		email: normalizeEmail(email),
		hash:  passwordHash,
		dummy: dummy,
	}, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, email, password string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}

	email = normalizeEmail(email)
	known := v.email != "" && subtle.ConstantTimeCompare([]byte(email), []byte(v.email)) == 1

	hash := v.dummy
	if known {
		hash = v.hash
	}
	ok, err := CheckPassword(password, hash)
	if err != nil {
		return Principal{}, err
	}
	if !known || !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Email: v.email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
