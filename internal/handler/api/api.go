// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API of the club content backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/clubcms/internal/auth"
	"github.com/olegiv/clubcms/internal/cache"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/scheduler"
	"github.com/olegiv/clubcms/internal/service"
	"github.com/olegiv/clubcms/internal/summary"
)

// Pagination defaults.
const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// AuditReader reads the persisted audit log.
type AuditReader interface {
	Recent(ctx context.Context, category string, limit int) ([]model.AuditEntry, error)
}

// Config holds the dependencies of the API handlers.
type Config struct {
	Service   *service.Service
	Lists     *cache.ListCache
	Summary   *summary.View
	Verifier  auth.Verifier
	Login     *middleware.LoginProtection
	Sessions  *scs.SessionManager
	Reclaimer *service.Reclaimer
	Jobs      *scheduler.Scheduler
	Audit     AuditReader
	Logger    *slog.Logger

	// MaxUploadSize bounds one uploaded image.
	MaxUploadSize int64
	// Timeout bounds every request except the summary stream. Zero disables it.
	Timeout time.Duration
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	svc       *service.Service
	lists     *cache.ListCache
	view      *summary.View
	verifier  auth.Verifier
	guard     *middleware.LoginProtection
	sessions  *scs.SessionManager
	reclaimer *service.Reclaimer
	jobs      *scheduler.Scheduler
	audit     AuditReader
	logger    *slog.Logger
	maxUpload int64
	timeout   time.Duration

	news       *resource[model.NewsItem, model.NewsDraft, model.NewsPatch]
	events     *resource[model.Event, model.EventDraft, model.EventPatch]
	gallery    *resource[model.GalleryItem, model.GalleryDraft, model.GalleryPatch]
	leadership *resource[model.LeadershipEntry, model.LeadershipDraft, model.LeadershipPatch]
}

// NewHandler creates the API handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		svc:       cfg.Service,
		lists:     cfg.Lists,
		view:      cfg.Summary,
		verifier:  cfg.Verifier,
		guard:     cfg.Login,
		sessions:  cfg.Sessions,
		reclaimer: cfg.Reclaimer,
		jobs:      cfg.Jobs,
		audit:     cfg.Audit,
		logger:    cfg.Logger.With("component", "api"),
		maxUpload: cfg.MaxUploadSize,
		timeout:   cfg.Timeout,
	}

	h.news = &resource[model.NewsItem, model.NewsDraft, model.NewsPatch]{
		h:       h,
		coll:    h.svc.News,
		respond: func(it model.NewsItem) any { return h.newsResponse(it) },
		visible: func(it model.NewsItem) bool { return it.Status.Visible() },
	}
	h.events = &resource[model.Event, model.EventDraft, model.EventPatch]{
		h:       h,
		coll:    h.svc.Events,
		respond: func(e model.Event) any { return h.eventResponse(e) },
		visible: func(e model.Event) bool { return e.Status.Visible() },
	}
	h.gallery = &resource[model.GalleryItem, model.GalleryDraft, model.GalleryPatch]{
		h:       h,
		coll:    h.svc.Gallery,
		respond: func(it model.GalleryItem) any { return h.galleryResponse(it) },
		visible: func(it model.GalleryItem) bool { return it.Status.Visible() },
	}
	h.leadership = &resource[model.LeadershipEntry, model.LeadershipDraft, model.LeadershipPatch]{
		h:       h,
		coll:    h.svc.Leadership,
		respond: func(e model.LeadershipEntry) any { return h.leadershipResponse(e) },
	}
	return h
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 Bad Request response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// errorStatus maps a service error onto a status, code and message.
func errorStatus(err error) (int, string, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error", "Validation failed"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "Record not found"
	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict, "duplicate", "Position already filled"
	case errors.Is(err, service.ErrNotPublishable):
		return http.StatusBadRequest, "not_publishable", "Leadership entries have no publish state"
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusBadGateway, "storage_unavailable", "Storage unavailable, nothing was changed"
	}
	return http.StatusInternalServerError, "internal_error", "Internal error"
}

// writeServiceError writes the response for err returned by action.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, action string) {
	status, code, message := errorStatus(err)

	var details map[string]string
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		details = verr.Fields
	}

	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("failed to "+action, "error", err)
	case status == http.StatusConflict:
		h.logger.Warn("rejected "+action, "error", err, "category", model.AuditCategoryConflict)
	}
	WriteError(w, status, code, message, details)
}
