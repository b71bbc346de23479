// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers that sit outside the JSON API:
// health checks, local media serving and shared request helpers.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrInvalidID is returned when the id URL parameter is not a positive integer.
var ErrInvalidID = errors.New("invalid id")

// ParseIDParam parses the "id" URL parameter.
func ParseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// ParsePageParam parses the "page" query parameter from the request.
// Returns 1 if the parameter is missing, empty, or invalid.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, "page", 1, 1, 0)
}

// ParsePerPageParam parses the "per_page" query parameter from the request.
// Returns the default value if the parameter is missing, empty, invalid or
// outside [1, maxPerPage].
func ParsePerPageParam(r *http.Request, defaultPerPage, maxPerPage int) int {
	return ParseIntParam(r, "per_page", defaultPerPage, 1, maxPerPage)
}

// ParseIntParam parses an integer query parameter from the request.
// Returns defaultVal if the parameter is missing, empty, or invalid.
// If minVal > 0, values below minVal return defaultVal.
// If maxVal > 0, values above maxVal return defaultVal.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if minVal > 0 && val < minVal {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return defaultVal
	}
	return val
}

// ParseBoolParam parses an optional boolean query parameter. ok is false
// when the parameter is absent; err is set when it is present but invalid.
func ParseBoolParam(r *http.Request, param string) (val, ok bool, err error) {
	str := strings.TrimSpace(r.URL.Query().Get(param))
	if str == "" {
		return false, false, nil
	}
	val, err = strconv.ParseBool(str)
	if err != nil {
		return false, false, err
	}
	return val, true, nil
}

// TotalPages returns how many pages of perPage items hold total items.
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := int(total) / perPage
	if int(total)%perPage != 0 {
		pages++
	}
	return pages
}
