// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/clubcms/internal/middleware"
)

// Routes returns the API router, to be mounted at /api/v1.
//
// The summary stream is registered outside the session and timeout
// middleware because it stays open for as long as the client listens.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/summary/stream", h.SummaryStream)

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.LoadAndSave)
		r.Use(middleware.LoadAuthor(h.sessions))
		if h.timeout > 0 {
			r.Use(middleware.Timeout(h.timeout))
		}

		r.With(h.guard.Middleware()).Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Get("/summary", h.Summary)
		r.Get("/leadership/roster", h.Roster)
		r.With(middleware.RequireAuthor).Post("/gallery/batch", h.GalleryBatch)

		mountResource(r, h.news)
		mountResource(r, h.events)
		mountResource(r, h.gallery)
		mountResource(r, h.leadership)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuthor)
			r.Post("/reclaim", h.Reclaim)
			r.Get("/audit", h.AuditLog)
			r.Get("/jobs", h.Jobs)
			r.Post("/jobs/{name}/run", h.RunJob)
		})
	})
	return r
}

// mountResource registers the CRUD and publish routes of one collection.
// Reads are public; writes need an authoring session.
func mountResource[R, D, P any](r chi.Router, rs *resource[R, D, P]) {
	base := "/" + rs.coll.Type().String()

	r.Get(base, rs.list)
	r.Get(base+"/{id}", rs.get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthor)
		r.Post(base, rs.create)
		r.Put(base+"/{id}", rs.update)
		r.Delete(base+"/{id}", rs.remove)
		r.Patch(base+"/{id}/publish", rs.h.publish(rs.coll.Type()))
	})
}
