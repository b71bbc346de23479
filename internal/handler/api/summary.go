// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// streamKeepAlive is how often an idle summary stream sends a comment line
// so that proxies keep the connection open.
const streamKeepAlive = 25 * time.Second

// Summary handles GET /summary.
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, h.view.Snapshot(), nil)
}

// SummaryStream handles GET /summary/stream. It sends the current snapshot
// and then every newer one as server-sent events until the client leaves.
// Snapshots a slow client could not take in time are skipped.
func (h *Handler) SummaryStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	if err := rc.Flush(); errors.Is(err, http.ErrNotSupported) {
		WriteInternalError(w, "Streaming unsupported")
		return
	}

	updates, stop := h.view.Watch()
	defer stop()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "summary", snap); err != nil {
				h.logger.Debug("summary stream closed", "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one server-sent event with a JSON payload.
func writeEvent(w http.ResponseWriter, event string, s model.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\ndata: ")
	b.Write(data)
	b.WriteString("\n\n")
	_, err = fmt.Fprint(w, b.String())
	return err
}
