// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strings"

	"github.com/olegiv/clubcms/internal/model"
)

// Roster handles GET /leadership/roster. The optional committee query
// restricts the roster to one committee.
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	var committee model.Committee
	if v := strings.TrimSpace(r.URL.Query().Get("committee")); v != "" {
		c, ok := model.ParseCommittee(v)
		if !ok {
			WriteBadRequest(w, "Invalid query parameters", map[string]string{"committee": "unknown committee"})
			return
		}
		committee = c
	}

	roster, err := h.svc.Roster(r.Context(), committee)
	if err != nil {
		h.writeServiceError(w, err, "load roster")
		return
	}

	vacant := 0
	for _, p := range roster {
		if p.Vacant() {
			vacant++
		}
	}
	h.logger.Debug("roster served", "positions", len(roster), "vacant", vacant)
	WriteSuccess(w, h.rosterResponse(roster), &Meta{Total: int64(len(roster))})
}
