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

const galleryColumns = "id, category, category_slug, status, image, created_at, updated_at, published_at"

// GalleryStore persists gallery photos.
type GalleryStore struct {
	table
}

// Insert stores a new photo record and returns its id. image must not be empty.
func (s *GalleryStore) Insert(ctx context.Context, d model.GalleryDraft, image string) (int64, error) {
	state := model.InitialState(d.Published)
	now := s.now()
	id, _, err := s.insert(ctx,
		[]string{"category", "category_slug", "status", "image", "published_at"},
		[]any{d.Category, util.Slugify(d.Category), string(state), image, publishedAt(state, now)},
	)
	return id, err
}

// Get returns the photo with the given id.
func (s *GalleryStore) Get(ctx context.Context, id int64) (model.GalleryItem, error) {
	row := s.s.db.QueryRowContext(ctx, "SELECT "+galleryColumns+" FROM gallery WHERE id = ?", id)
	item, err := scanGallery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

// Update applies the non-nil fields of p. A non-nil image replaces the media reference.
func (s *GalleryStore) Update(ctx context.Context, id int64, p model.GalleryPatch, image *string) error {
	var sets setList
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

// Delete removes the photo record. Deleting a missing record returns ErrNotFound.
func (s *GalleryStore) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id)
}

// TogglePublished flips the publish state and returns the new state.
func (s *GalleryStore) TogglePublished(ctx context.Context, id int64) (model.PublishState, error) {
	return s.toggle(ctx, id)
}

// SetPublished sets the visibility and returns the resulting state and
// whether it changed.
func (s *GalleryStore) SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error) {
	return s.setVisible(ctx, id, published)
}

// List returns photos newest first.
func (s *GalleryStore) List(ctx context.Context, f ListFilter) iter.Seq2[model.GalleryItem, error] {
	w := galleryWhere(f)
	limit, largs := page(f)
	query := "SELECT " + galleryColumns + " FROM gallery" + w.clause() + " ORDER BY created_at DESC, id DESC" + limit
	return listRows(ctx, s.s.db, query, append(w.values(), largs...), scanGallery)
}

// Count returns the number of photos matching f, ignoring paging.
func (s *GalleryStore) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.count(ctx, galleryWhere(f))
}

func galleryWhere(f ListFilter) *where {
	w := &where{}
	if f.PublishedOnly {
		w.add("status = 'published'")
	}
	if f.Category != "" {
		w.add("category_slug = ?", util.Slugify(f.Category))
	}
	return w
}

func scanGallery(sc scanner) (model.GalleryItem, error) {
	var (
		it               model.GalleryItem
		status           string
		created, updated string
		published        sql.NullString
	)
	err := sc.Scan(&it.ID, &it.Category, &it.CategorySlug, &status, &it.Image, &created, &updated, &published)
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
