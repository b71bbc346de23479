// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/store"
)

// Roster returns every catalog position with its holder. Positions nobody
// holds are returned vacant.
func (s *Service) Roster(ctx context.Context, committee model.Committee) ([]model.RosterPosition, error) {
	entries, err := store.Collect(s.store.Leadership.List(ctx, store.ListFilter{Committee: committee}))
	if err != nil {
		return nil, classify(err)
	}
	roster := model.BuildRoster(entries)
	if committee == "" {
		return roster, nil
	}
	out := roster[:0]
	for _, p := range roster {
		if p.Committee == committee {
			out = append(out, p)
		}
	}
	return out, nil
}
