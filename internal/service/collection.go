// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/objstore"
	"github.com/olegiv/clubcms/internal/store"
)

// recordStore is the persistence contract of one collection.
type recordStore[R, D, P any] interface {
	Insert(ctx context.Context, d D, image string) (int64, error)
	Get(ctx context.Context, id int64) (R, error)
	Update(ctx context.Context, id int64, p P, image *string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f store.ListFilter) iter.Seq2[R, error]
	Count(ctx context.Context, f store.ListFilter) (int64, error)
}

// publishStore is implemented by stores of publishable records.
type publishStore interface {
	TogglePublished(ctx context.Context, id int64) (model.PublishState, error)
	SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error)
}

// Publisher toggles or sets the publish state of a record.
type Publisher interface {
	TogglePublish(ctx context.Context, id int64) (model.PublishState, error)
	SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error)
}

// Deleter removes a record and optionally its media.
type Deleter interface {
	Delete(ctx context.Context, id int64, reclaimMedia bool) (DeleteResult, error)
}

// rules holds what differs between collections.
type rules[R, D, P any] struct {
	imageRequired bool
	draft         func(D) (D, fieldErrors)
	patch         func(P) (P, fieldErrors)
	// check validates a patch against the current record. Optional.
	check        func(R, P) fieldErrors
	empty        func(P) bool
	image        func(R) string
	updatedAt    func(R) time.Time
	unmodifiedBy func(P) *time.Time
}

// mediaRetainer records blobs kept after their record was deleted.
type mediaRetainer interface {
	RetainMedia(ctx context.Context, t model.ContentType, path string) error
}

type collectionBase struct {
	typ     model.ContentType
	bucket  string
	media   objstore.Store
	retain  mediaRetainer
	timeout time.Duration
	logger  *slog.Logger
}

func (b collectionBase) forType(t model.ContentType, buckets map[model.ContentType]string) collectionBase {
	b.typ = t
	b.bucket = buckets[t]
	b.logger = b.logger.With("type", string(t))
	return b
}

// Collection coordinates one content type: uploads go to the object store
// before the record is written, new media always gets a new path, and old
// media is never deleted by an update.
type Collection[R, D, P any] struct {
	collectionBase
	records recordStore[R, D, P]
	pub     publishStore
	rules   rules[R, D, P]
}

func newCollection[R, D, P any](base collectionBase, records recordStore[R, D, P], pub publishStore, r rules[R, D, P]) *Collection[R, D, P] {
	return &Collection[R, D, P]{
		collectionBase: base,
		records:        records,
		pub:            pub,
		rules:          r,
	}
}

// Type returns the content type of the collection.
func (c *Collection[R, D, P]) Type() model.ContentType {
	return c.typ
}

// Create validates d, uploads the image if one is given, then inserts the
// record. An upload failure aborts before anything is written. An insert
// failure deletes the blob that was just uploaded.
func (c *Collection[R, D, P]) Create(ctx context.Context, d D, up *Upload) (int64, error) {
	d, errs := c.rules.draft(d)
	if up == nil && c.rules.imageRequired {
		errs.add("image", "is required")
	}
	var media sniffed
	if up != nil {
		media = sniffUpload(up, errs)
	}
	if err := errs.err(); err != nil {
		return 0, err
	}

	var image string
	if up != nil {
		path, err := c.put(ctx, media)
		if err != nil {
			c.logger.Warn("upload failed, record not created", "error", err, "category", model.AuditCategoryMedia)
			return 0, err
		}
		image = path
	}

	id, err := c.records.Insert(ctx, d, image)
	if err != nil {
		if image != "" {
			c.discard(ctx, image)
		}
		return 0, classify(err)
	}

	c.logger.Info("record created", "id", id, "image", image)
	return id, nil
}

// Update applies p and, if up is given, points the record at a newly
// uploaded image. When the upload fails but other fields changed, those
// fields are still saved and the outcome says so. The previous image is
// kept for the reclamation sweep.
func (c *Collection[R, D, P]) Update(ctx context.Context, id int64, p P, up *Upload) (UpdateResult, error) {
	p, errs := c.rules.patch(p)
	if up == nil && c.rules.empty(p) && len(errs) == 0 {
		errs.add("fields", "nothing to update")
	}
	var media sniffed
	if up != nil {
		media = sniffUpload(up, errs)
	}
	if err := errs.err(); err != nil {
		return UpdateResult{}, err
	}

	current, err := c.records.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, classify(err)
	}
	if c.rules.check != nil {
		if err := c.rules.check(current, p).err(); err != nil {
			return UpdateResult{}, err
		}
	}
	if since := c.rules.unmodifiedBy(p); since != nil && c.rules.updatedAt(current).After(*since) {
		c.logger.Warn("conflict ignored: record changed since it was read",
			"id", id,
			"updated_at", c.rules.updatedAt(current),
			"if_unmodified_since", *since,
			"category", model.AuditCategoryConflict)
	}

	res := UpdateResult{Outcome: OutcomeSaved, Image: c.rules.image(current)}
	var image *string
	if up != nil {
		path, err := c.put(ctx, media)
		switch {
		case err != nil && c.rules.empty(p):
			c.logger.Warn("upload failed, record not updated", "id", id, "error", err, "category", model.AuditCategoryMedia)
			return UpdateResult{}, err
		case err != nil:
			c.logger.Warn("upload failed, saving fields only", "id", id, "error", err, "category", model.AuditCategoryMedia)
			res.Outcome = OutcomeSavedWithoutMedia
			res.MediaErr = err
		default:
			image = &path
		}
	}

	if err := c.records.Update(ctx, id, p, image); err != nil {
		if image != nil {
			c.discard(ctx, *image)
		}
		return UpdateResult{}, classify(err)
	}

	if image != nil {
		if res.Image != "" {
			c.logger.Info("media replaced, previous blob retained", "id", id, "previous", res.Image, "image", *image)
		}
		res.Image = *image
	}
	c.logger.Info("record updated", "id", id, "outcome", res.Outcome)
	return res, nil
}

// Delete removes the record. With reclaimMedia the blob is deleted too; a
// failure there is logged and reported in the result but does not fail
// the delete. Without it the blob is recorded as retained and outlives any
// reclamation sweep.
func (c *Collection[R, D, P]) Delete(ctx context.Context, id int64, reclaimMedia bool) (DeleteResult, error) {
	current, err := c.records.Get(ctx, id)
	if err != nil {
		return DeleteResult{}, classify(err)
	}
	res := DeleteResult{Image: c.rules.image(current)}
	// A kept blob is recorded before the record goes so the sweep never
	// sees it unreferenced.
	if !reclaimMedia && res.Image != "" {
		if err := c.retain.RetainMedia(ctx, c.typ, res.Image); err != nil {
			return DeleteResult{}, classify(err)
		}
	}
	if err := c.records.Delete(ctx, id); err != nil {
		return DeleteResult{}, classify(err)
	}

	if reclaimMedia && res.Image != "" {
		sctx, cancel := c.storageCtx(ctx)
		defer cancel()
		if err := c.media.Delete(sctx, c.bucket, res.Image); err != nil {
			res.MediaErr = err
			c.logger.Warn("failed to reclaim media of deleted record",
				"id", id,
				"image", res.Image,
				"error", err,
				"category", model.AuditCategoryMedia)
		} else {
			res.Reclaimed = true
		}
	}

	c.logger.Info("record deleted", "id", id, "reclaimed", res.Reclaimed)
	return res, nil
}

// Get returns the record with the given id.
func (c *Collection[R, D, P]) Get(ctx context.Context, id int64) (R, error) {
	r, err := c.records.Get(ctx, id)
	return r, classify(err)
}

// List returns one page of records matching f and the total match count.
func (c *Collection[R, D, P]) List(ctx context.Context, f store.ListFilter) ([]R, int64, error) {
	items, err := store.Collect(c.records.List(ctx, f))
	if err != nil {
		return nil, 0, classify(err)
	}
	total, err := c.records.Count(ctx, f)
	if err != nil {
		return nil, 0, classify(err)
	}
	return items, total, nil
}

// TogglePublish flips the publish state and returns the new state.
func (c *Collection[R, D, P]) TogglePublish(ctx context.Context, id int64) (model.PublishState, error) {
	if c.pub == nil {
		return "", ErrNotPublishable
	}
	state, err := c.pub.TogglePublished(ctx, id)
	if err != nil {
		return "", classify(err)
	}
	c.logger.Info("publish state toggled", "id", id, "status", state)
	return state, nil
}

// SetPublished sets the visibility explicitly and returns the stored state.
// When the record already had it, nothing is written and the request is
// logged as an ignored conflict.
func (c *Collection[R, D, P]) SetPublished(ctx context.Context, id int64, published bool) (model.PublishState, bool, error) {
	if c.pub == nil {
		return "", false, ErrNotPublishable
	}
	state, changed, err := c.pub.SetPublished(ctx, id, published)
	if err != nil {
		return "", false, classify(err)
	}
	if !changed {
		c.logger.Warn("conflict ignored: publish state already set",
			"id", id,
			"published", published,
			"status", state,
			"category", model.AuditCategoryConflict)
		return state, false, nil
	}
	c.logger.Info("publish state set", "id", id, "status", state)
	return state, true, nil
}

// PublicURL derives the public address of a media reference.
func (c *Collection[R, D, P]) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return c.media.PublicURL(c.bucket, path)
}

type sniffed struct {
	contentType string
	body        io.Reader
}

func sniffUpload(up *Upload, errs fieldErrors) sniffed {
	if up.Body == nil {
		errs.add("image", "is empty")
		return sniffed{}
	}
	ct, body, err := objstore.Sniff(up.Body)
	switch {
	case errors.Is(err, objstore.ErrEmpty):
		errs.add("image", "is empty")
	case errors.Is(err, objstore.ErrUnsupportedType):
		errs.add("image", "must be a JPEG, PNG, GIF or WebP image")
	case err != nil:
		errs.add("image", "could not be read")
	}
	return sniffed{contentType: ct, body: body}
}

func (c *collectionBase) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *collectionBase) put(ctx context.Context, m sniffed) (string, error) {
	sctx, cancel := c.storageCtx(ctx)
	defer cancel()
	path, err := c.media.Put(sctx, c.bucket, c.typ.MediaPrefix(), m.body, m.contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return path, nil
}

// discard deletes a blob whose record write failed. It runs even when the
// request was canceled, since the blob would otherwise be orphaned.
func (c *collectionBase) discard(ctx context.Context, path string) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.media.Delete(sctx, c.bucket, path); err != nil {
		c.logger.Warn("failed to discard uploaded media",
			"image", path,
			"error", err,
			"category", model.AuditCategoryMedia)
		return
	}
	c.logger.Debug("discarded uploaded media", "image", path)
}
