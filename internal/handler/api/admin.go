// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/clubcms/internal/handler"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/scheduler"
	"github.com/olegiv/clubcms/internal/service"
)

// Audit log page sizes.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Reclaim handles POST /admin/reclaim. It runs a reclamation sweep now.
func (h *Handler) Reclaim(w http.ResponseWriter, r *http.Request) {
	report, err := h.reclaimer.Sweep(r.Context())
	switch {
	case errors.Is(err, service.ErrSweepRunning):
		WriteError(w, http.StatusConflict, "sweep_running", "A reclamation sweep is already running", nil)
		return
	case err != nil:
		details := make(map[string]string, len(report.Errors))
		for t, msg := range report.Errors {
			details[t.String()] = msg
		}
		h.logger.Error("reclamation sweep failed", "error", err, "author", middleware.Author(r))
		WriteError(w, http.StatusBadGateway, "storage_unavailable", "Reclamation sweep incomplete", details)
		return
	}

	h.logger.Info("reclamation sweep run on request", "deleted", report.Deleted, "author", middleware.Author(r))
	WriteSuccess(w, report, nil)
}

// AuditLog handles GET /admin/audit. Query: category, limit.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	limit := handler.ParseIntParam(r, "limit", defaultAuditLimit, 1, maxAuditLimit)

	entries, err := h.audit.Recent(r.Context(), category, limit)
	if err != nil {
		h.logger.Error("failed to read audit log", "error", err)
		WriteInternalError(w, "Failed to read audit log")
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	WriteSuccess(w, entries, &Meta{Total: int64(len(entries))})
}

// Jobs handles GET /admin/jobs.
func (h *Handler) Jobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.jobs.Jobs()
	WriteSuccess(w, jobs, &Meta{Total: int64(len(jobs))})
}

// RunJob handles POST /admin/jobs/{name}/run.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.jobs.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, "Job not found")
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		WriteError(w, http.StatusConflict, "job_running", "Job is already running", nil)
		return
	case err != nil:
		status, code, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			message = "Job failed"
		}
		WriteError(w, status, code, message, nil)
		return
	}

	h.logger.Info("job run on request", "job", name, "author", middleware.Author(r))
	WriteSuccess(w, map[string]string{"job": name, "status": "completed"}, nil)
}
