// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// AuditStore persists audit log entries.
type AuditStore struct {
	db *sql.DB
}

// Insert appends an entry and returns its id.
func (s *AuditStore) Insert(ctx context.Context, e model.AuditEntry) (int64, error) {
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (level, category, message, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Level, e.Category, e.Message, e.Metadata, formatTime(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting audit entry: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first, optionally restricted to one category.
func (s *AuditStore) Recent(ctx context.Context, category string, limit int) ([]model.AuditEntry, error) {
	query := "SELECT id, level, category, message, metadata, created_at FROM audit_log"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e       model.AuditEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &created); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes entries older than cutoff and returns how many were removed.
func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning audit log: %w", err)
	}
	return res.RowsAffected()
}
