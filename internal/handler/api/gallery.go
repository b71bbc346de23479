// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/service"
)

// BatchItemResponse is the outcome of one file of a gallery batch.
type BatchItemResponse struct {
	Filename string           `json:"filename"`
	Created  bool             `json:"created"`
	Record   *GalleryResponse `json:"record,omitempty"`
	Error    *ErrorDetail     `json:"error,omitempty"`
}

// GalleryBatch handles POST /gallery/batch. The multipart form carries one
// or more "images" parts plus the shared "category" and "published" fields.
// Every file is created on its own; the response lists each outcome.
func (h *Handler) GalleryBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !isMultipart(r) {
		WriteBadRequest(w, "Expected a multipart form", nil)
		return
	}
	if !h.parseMultipart(w, r, h.maxUpload*service.MaxBatchFiles+formOverhead) {
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var draft model.GalleryDraft
	if err := formToJSON(r.MultipartForm.Value, &draft); err != nil {
		WriteBadRequest(w, "Invalid form fields", map[string]string{"form": err.Error()})
		return
	}

	headers := r.MultipartForm.File["images"]
	uploads := make([]service.Upload, 0, len(headers))
	var files []multipart.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for i, fh := range headers {
		if fh.Size > h.maxUpload {
			WriteValidationError(w, map[string]string{"images." + strconv.Itoa(i): fh.Filename + " exceeds the maximum upload size"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			WriteBadRequest(w, "Invalid image part", nil)
			return
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Body: f})
	}

	results, err := h.svc.CreateGalleryBatch(ctx, draft, uploads)
	if err != nil {
		h.writeServiceError(w, err, "create gallery batch")
		return
	}

	out := make([]BatchItemResponse, 0, len(results))
	created := 0
	var firstErr error
	for _, res := range results {
		item := BatchItemResponse{Filename: res.Filename}
		if res.Err != nil {
			_, code, message := errorStatus(res.Err)
			item.Error = &ErrorDetail{Code: code, Message: message}
			var verr *service.ValidationError
			if errors.As(res.Err, &verr) {
				item.Error.Details = verr.Fields
			}
			if firstErr == nil {
				firstErr = res.Err
			}
			out = append(out, item)
			continue
		}
		it, err := h.svc.Gallery.Get(ctx, res.ID)
		if err != nil {
			h.logger.Warn("created gallery item not readable", "id", res.ID, "error", err)
		} else {
			resp := h.galleryResponse(it)
			item.Record = &resp
		}
		item.Created = true
		created++
		out = append(out, item)
	}

	h.logger.Info("gallery batch uploaded", "files", len(results), "created", created, "author", middleware.Author(r))

	meta := &Meta{Total: int64(created)}
	if created == 0 {
		status, _, _ := errorStatus(firstErr)
		WriteJSON(w, status, Response{Data: out, Meta: meta})
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Data: out, Meta: meta})
}
