// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/util"
)

const eventColumns = "id, title, description, event_type, event_type_slug, location, starts_at, status, image, created_at, updated_at, published_at"

// EventStore persists club events.
type EventStore struct {
	table
}

// Insert stores a new event with the given media reference and returns its id.
func (s *EventStore) Insert(ctx context.Context, d model.EventDraft, image string) (int64, error) {
	state := model.InitialState(d.Published)
	now := s.now()
	id, _, err := s.insert(ctx,
		[]string{"title", "description", "event_type", "event_type_slug", "location", "starts_at", "status", "image", "published_at"},
		[]any{d.Title, d.Description, d.EventType, util.Slugify(d.EventType), d.Location,
			formatTime(d.StartsAt), string(state), image, publishedAt(state, now)},
	)
	return id, err
}

// Get returns the event with the given id.
func (s *EventStore) Get(ctx context.Context, id int64) (model.Event, error) {
	row := s.s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, ErrNotFound
	}
	return ev, err
}

// Update applies the non-nil fields of p. A non-nil image replaces the media reference.
func (s *EventStore) Update(ctx context.Context, id int64, p model.EventPatch, image *string) error {
	var sets setList
	if p.Title != nil {
		sets.add("title", *p.Title)
	}
	if p.Description != nil {
		sets.add("description", *p.Description)
	}
	if p.EventType != nil {
		sets.add("event_type", *p.EventType)
		sets.add("event_type_slug", util.Slugify(*p.EventType))
	}
	if p.Location != nil {
		sets.add("location", *p.Location)
	}
	if p.StartsAt != nil {
		sets.add("starts_at", formatTime(*p.StartsAt))
	}
	if image != nil {
		sets.add("image", *image)
	}

	now, err := s.update(ctx, s.s.db, id, &sets)
	if err != nil {
		return err
	}
	s.changed(ctx, model.OpUpdate, id, now)
	return nil
}

// Delete removes the event. Deleting a missing event returns ErrNotFound.
func (s *EventStore) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id)
}

// TogglePublished flips the publish state and returns the new state.
func (s *EventStore) TogglePublished(ctx context.Context, id int64) (model.PublishState, error) {
	return s.toggle(ctx, id)
}

// SetPublished sets the visibility and returns the resulting state and
// whether it changed.
func (s *EventStore) SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error) {
	return s.setVisible(ctx, id, published)
}

// List returns events soonest first.
func (s *EventStore) List(ctx context.Context, f ListFilter) iter.Seq2[model.Event, error] {
	w := s.where(f)
	limit, largs := page(f)
	query := "SELECT " + eventColumns + " FROM events" + w.clause() + " ORDER BY starts_at ASC, id ASC" + limit
	return listRows(ctx, s.s.db, query, append(w.values(), largs...), scanEvent)
}

// Count returns the number of events matching f, ignoring paging.
func (s *EventStore) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.count(ctx, s.where(f))
}

func (s *EventStore) where(f ListFilter) *where {
	w := &where{}
	if f.PublishedOnly {
		w.add("status = 'published'")
	}
	if f.Category != "" {
		w.add("event_type_slug = ?", util.Slugify(f.Category))
	}
	if f.Upcoming {
		w.add("starts_at >= ?", formatTime(s.now()))
	}
	return w
}

func scanEvent(sc scanner) (model.Event, error) {
	var (
		ev                       model.Event
		status                   string
		starts, created, updated string
		published                sql.NullString
	)
	err := sc.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.EventType, &ev.EventTypeSlug,
		&ev.Location, &starts, &status, &ev.Image, &created, &updated, &published)
	if err != nil {
		return ev, err
	}
	ev.Status = model.PublishState(status)
	if ev.StartsAt, err = parseTime(starts); err != nil {
		return ev, err
	}
	if ev.CreatedAt, err = parseTime(created); err != nil {
		return ev, err
	}
	if ev.UpdatedAt, err = parseTime(updated); err != nil {
		return ev, err
	}
	ev.PublishedAt, err = parseNullTime(published)
	return ev, err
}
