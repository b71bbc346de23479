// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/olegiv/clubcms/internal/handler"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
)

// PublishRequest sets the visibility explicitly. Without a body the state
// is toggled.
type PublishRequest struct {
	Published *bool `json:"published"`
}

// PublishResponse reports the publish state after the request.
type PublishResponse struct {
	ID     int64              `json:"id"`
	Status model.PublishState `json:"status"`
	// Changed is false when the record already had the requested visibility.
	Changed bool `json:"changed"`
}

// publish handles PATCH /{type}/{id}/publish.
func (h *Handler) publish(t model.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := handler.ParseIDParam(r)
		if err != nil {
			WriteBadRequest(w, "Invalid id", nil)
			return
		}

		var req PublishRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteBadRequest(w, "Invalid JSON body", nil)
			return
		}

		pub, err := h.svc.Publisher(t)
		if err != nil {
			h.writeServiceError(w, err, "publish "+t.String())
			return
		}

		resp := PublishResponse{ID: id}
		if req.Published == nil {
			resp.Status, err = pub.TogglePublish(ctx, id)
			resp.Changed = err == nil
		} else {
			resp.Status, resp.Changed, err = pub.SetPublished(ctx, id, *req.Published)
		}
		if err != nil {
			h.writeServiceError(w, err, "publish "+t.String())
			return
		}

		h.logger.Info("publish state changed", "type", t, "id", id, "status", resp.Status, "changed", resp.Changed, "author", middleware.Author(r))
		WriteSuccess(w, resp, nil)
	}
}
