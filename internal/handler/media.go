// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/clubcms/internal/util"
)

// mediaMaxAge is the client cache lifetime of a blob. Keys are never
// reused, so a blob at a given URL never changes.
const mediaMaxAge = "public, max-age=604800, immutable"

// MediaHandler serves blobs of the local object store.
type MediaHandler struct {
	root string
}

// NewMediaHandler serves files stored below root as <root>/<bucket>/<key>.
func NewMediaHandler(root string) *MediaHandler {
	return &MediaHandler{root: root}
}

// Serve handles GET /media/{bucket}/*. Bodies are sent byte-for-byte.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	full, err := util.JoinKey(h.root, chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", mediaMaxAge)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
