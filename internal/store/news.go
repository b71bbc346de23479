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

const newsColumns = "id, title, body, category, category_slug, status, image, created_at, updated_at, published_at"

// NewsStore persists news posts.
type NewsStore struct {
	table
}

// Insert stores a new post with the given media reference and returns its id.
func (s *NewsStore) Insert(ctx context.Context, d model.NewsDraft, image string) (int64, error) {
	state := model.InitialState(d.Published)
	now := s.now()
	id, _, err := s.insert(ctx,
		[]string{"title", "body", "category", "category_slug", "status", "image", "published_at"},
		[]any{d.Title, d.Body, d.Category, util.Slugify(d.Category), string(state), image, publishedAt(state, now)},
	)
	return id, err
}

// Get returns the post with the given id.
func (s *NewsStore) Get(ctx context.Context, id int64) (model.NewsItem, error) {
	row := s.s.db.QueryRowContext(ctx, "SELECT "+newsColumns+" FROM news WHERE id = ?", id)
	item, err := scanNews(row)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

// Update applies the non-nil fields of p. A non-nil image replaces the media reference.
func (s *NewsStore) Update(ctx context.Context, id int64, p model.NewsPatch, image *string) error {
	var sets setList
	if p.Title != nil {
		sets.add("title", *p.Title)
	}
	if p.Body != nil {
		sets.add("body", *p.Body)
	}
	if p.Category != nil {
		sets.add("category", *p.Category)
		sets.add("category_slug", util.Slugify(*p.Category))
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

// Delete removes the post. Deleting a missing post returns ErrNotFound.
func (s *NewsStore) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id)
}

// TogglePublished flips the publish state and returns the new state.
func (s *NewsStore) TogglePublished(ctx context.Context, id int64) (model.PublishState, error) {
	return s.toggle(ctx, id)
}

// SetPublished sets the visibility and returns the resulting state and
// whether it changed.
func (s *NewsStore) SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error) {
	return s.setVisible(ctx, id, published)
}

// List returns posts newest first.
func (s *NewsStore) List(ctx context.Context, f ListFilter) iter.Seq2[model.NewsItem, error] {
	w := newsWhere(f)
	limit, largs := page(f)
	query := "SELECT " + newsColumns + " FROM news" + w.clause() + " ORDER BY created_at DESC, id DESC" + limit
	return listRows(ctx, s.s.db, query, append(w.values(), largs...), scanNews)
}

// Count returns the number of posts matching f, ignoring paging.
func (s *NewsStore) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.count(ctx, newsWhere(f))
}

func newsWhere(f ListFilter) *where {
	w := &where{}
	if f.PublishedOnly {
		w.add("status = 'published'")
	}
	if f.Category != "" {
		w.add("category_slug = ?", util.Slugify(f.Category))
	}
	return w
}

func scanNews(sc scanner) (model.NewsItem, error) {
	var (
		it               model.NewsItem
		status           string
		created, updated string
		published        sql.NullString
	)
	err := sc.Scan(&it.ID, &it.Title, &it.Body, &it.Category, &it.CategorySlug,
		&status, &it.Image, &created, &updated, &published)
	if err != nil {
		return it, err
	}
	it.Status = model.PublishState(status)
	if it.CreatedAt, err = parseTime(created); err != nil {
		return it, err
	}
	if it.UpdatedAt, err = parseTime(updated); err != nil {
		return it, err
	}
	it.PublishedAt, err = parseNullTime(published)
	return it, err
}
