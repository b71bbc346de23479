// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/olegiv/clubcms/internal/model"
)

// RetainMedia records that the blob at path outlives its deleted record of
// type t. Retained blobs are never reclaimed. Recording the same path twice
// is a no-op.
func (s *Store) RetainMedia(ctx context.Context, t model.ContentType, path string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO retained_media (content_type, path, created_at) VALUES (?, ?, ?) ON CONFLICT (content_type, path) DO NOTHING",
		string(t), path, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("retaining %s media: %w", t, err)
	}
	return nil
}

// RetainedMediaPaths returns the paths kept by RetainMedia for type t.
func (s *Store) RetainedMediaPaths(ctx context.Context, t model.ContentType) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM retained_media WHERE content_type = ?", string(t))
	if err != nil {
		return nil, fmt.Errorf("listing retained %s media: %w", t, err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
