// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store persists club content records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/olegiv/clubcms/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would violate a uniqueness rule.
	ErrDuplicate = errors.New("duplicate record")
)

// ChangeHook is called after every successful mutation.
type ChangeHook func(ctx context.Context, c model.Change)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithChangeHook registers a hook run after each successful mutation.
// Hooks run in registration order on the mutating goroutine.
func WithChangeHook(h ChangeHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

// Store groups the per-collection record stores over one database.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	hooks []ChangeHook

	News       *NewsStore
	Events     *EventStore
	Gallery    *GalleryStore
	Leadership *LeadershipStore
	Audit      *AuditStore
}

// New creates a Store over db.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.News = &NewsStore{table{s: s, name: "news", typ: model.TypeNews}}
	s.Events = &EventStore{table{s: s, name: "events", typ: model.TypeEvents}}
	s.Gallery = &GalleryStore{table{s: s, name: "gallery", typ: model.TypeGallery}}
	s.Leadership = &LeadershipStore{table{s: s, name: "leadership", typ: model.TypeLeadership}}
	s.Audit = &AuditStore{db: db}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Count returns the number of records of type t, regardless of publish state.
func (s *Store) Count(ctx context.Context, t model.ContentType) (int64, error) {
	tbl, err := s.table(t)
	if err != nil {
		return 0, err
	}
	return tbl.count(ctx, nil)
}

// MediaPaths returns every media reference held by records of type t.
func (s *Store) MediaPaths(ctx context.Context, t model.ContentType) ([]string, error) {
	tbl, err := s.table(t)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT image FROM "+tbl.name+" WHERE image <> ''")
	if err != nil {
		return nil, fmt.Errorf("listing %s media: %w", tbl.name, err)
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

func (s *Store) table(t model.ContentType) (*table, error) {
	switch t {
	case model.TypeNews:
		return &s.News.table, nil
	case model.TypeEvents:
		return &s.Events.table, nil
	case model.TypeGallery:
		return &s.Gallery.table, nil
	case model.TypeLeadership:
		return &s.Leadership.table, nil
	}
	return nil, fmt.Errorf("unknown content type %q", t)
}

// ListFilter narrows a List query. Zero values mean no restriction.
type ListFilter struct {
	PublishedOnly bool
	// Category matches the slug of the category (event type for events).
	Category  string
	Committee model.Committee
	// Upcoming restricts events to those starting at or after now.
	Upcoming bool
	Limit    int
	Offset   int
}

// Collect drains a record sequence into a slice.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// table holds what every collection store shares.
type table struct {
	s    *Store
	name string
	typ  model.ContentType
}

func (t *table) now() time.Time {
	return t.s.now().UTC()
}

func (t *table) changed(ctx context.Context, op model.ChangeOp, id int64, at time.Time) {
	c := model.Change{Type: t.typ, Op: op, ID: id, At: at}
	for _, h := range t.s.hooks {
		h(ctx, c)
	}
}

func (t *table) insert(ctx context.Context, cols []string, args []any) (int64, time.Time, error) {
	now := t.now()
	cols = append(cols, "created_at", "updated_at")
	args = append(args, formatTime(now), formatTime(now))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := t.s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, now, t.wrap("inserting", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, now, fmt.Errorf("reading %s id: %w", t.name, err)
	}
	t.changed(ctx, model.OpInsert, id, now)
	return id, now, nil
}

func (t *table) update(ctx context.Context, q querier, id int64, sets *setList) (time.Time, error) {
	now := t.now()
	sets.add("updated_at", formatTime(now))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, sets.clause())
	res, err := q.ExecContext(ctx, query, append(sets.args, id)...)
	if err != nil {
		return now, t.wrap("updating", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return now, err
	}
	if n == 0 {
		return now, ErrNotFound
	}
	return now, nil
}

func (t *table) delete(ctx context.Context, id int64) error {
	res, err := t.s.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return t.wrap("deleting", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	t.changed(ctx, model.OpDelete, id, t.now())
	return nil
}

func (t *table) count(ctx context.Context, w *where) (int64, error) {
	query := "SELECT COUNT(*) FROM " + t.name + w.clause()
	var n int64
	if err := t.s.db.QueryRowContext(ctx, query, w.values()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", t.name, err)
	}
	return n, nil
}

// toggle flips the publish state in one statement and returns the new state.
func (t *table) toggle(ctx context.Context, id int64) (model.PublishState, error) {
	now := formatTime(t.now())
	query := fmt.Sprintf(`UPDATE %s SET
		status = CASE status WHEN 'published' THEN 'unpublished' ELSE 'published' END,
		published_at = CASE status WHEN 'published' THEN published_at ELSE ? END,
		updated_at = ?
		WHERE id = ? RETURNING status`, t.name)

	var state string
	err := t.s.db.QueryRowContext(ctx, query, now, now, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", t.wrap("toggling", err)
	}
	t.changed(ctx, model.OpPublish, id, t.now())
	return model.PublishState(state), nil
}

// setVisible publishes or unpublishes a record and returns the state it
// holds afterwards. It reports false when the record was already in the
// requested visibility; a draft stays a draft when unpublished.
func (t *table) setVisible(ctx context.Context, id int64, published bool) (model.PublishState, bool, error) {
	now := formatTime(t.now())
	var (
		query string
		args  []any
	)
	if published {
		query = "UPDATE " + t.name + " SET status = 'published', published_at = ?, updated_at = ? WHERE id = ? AND status <> 'published' RETURNING status"
		args = []any{now, now, id}
	} else {
		query = "UPDATE " + t.name + " SET status = 'unpublished', updated_at = ? WHERE id = ? AND status = 'published' RETURNING status"
		args = []any{now, id}
	}

	var state string
	err := t.s.db.QueryRowContext(ctx, query, args...).Scan(&state)
	if err == nil {
		t.changed(ctx, model.OpPublish, id, t.now())
		return model.PublishState(state), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, t.wrap("publishing", err)
	}

	err = t.s.db.QueryRowContext(ctx, "SELECT status FROM "+t.name+" WHERE id = ?", id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return model.PublishState(state), false, nil
}

func (t *table) wrap(action string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", action, t.name, ErrDuplicate)
	}
	return fmt.Errorf("%s %s: %w", action, t.name, err)
}

// listRows runs query lazily: nothing executes until the sequence is ranged
// over, and each range re-runs the query.
func listRows[T any](ctx context.Context, db *sql.DB, query string, args []any, scan func(scanner) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// setList accumulates the SET clause of a partial update.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setList) clause() string {
	return strings.Join(s.cols, ", ")
}

// where accumulates filter predicates.
type where struct {
	preds []string
	args  []any
}

func (w *where) add(pred string, args ...any) {
	w.preds = append(w.preds, pred)
	w.args = append(w.args, args...)
}

func (w *where) clause() string {
	if w == nil || len(w.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.preds, " AND ")
}

func (w *where) values() []any {
	if w == nil {
		return nil
	}
	return w.args
}

func page(f ListFilter) (string, []any) {
	if f.Limit <= 0 {
		return "", nil
	}
	return " LIMIT ? OFFSET ?", []any{f.Limit, max(f.Offset, 0)}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// timeLayout is fixed width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// publishedAt returns the published_at value for a record created in state.
func publishedAt(state model.PublishState, now time.Time) any {
	if state.Visible() {
		return formatTime(now)
	}
	return nil
}
