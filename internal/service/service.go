// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service coordinates record and media storage for the club
// content collections.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/objstore"
	"github.com/olegiv/clubcms/internal/store"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStorageUnavailable is returned when the object store or the
	// record store fails or times out.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicate is returned when a leadership position is already held.
	ErrDuplicate = errors.New("position already filled")
	// ErrNotPublishable is returned for publish operations on leadership entries.
	ErrNotPublishable = errors.New("content type has no publish state")
)

// DefaultStorageTimeout bounds each object store call.
const DefaultStorageTimeout = 30 * time.Second

// ValidationError lists the fields that failed validation. It is returned
// before any side effect.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// Upload is an image supplied with a create or update.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Outcome distinguishes a full save from a save that kept the old media.
type Outcome string

// Update outcomes. A failed update returns an error instead.
const (
	OutcomeSaved             Outcome = "saved"
	OutcomeSavedWithoutMedia Outcome = "saved_without_media"
)

// UpdateResult reports what an update persisted.
type UpdateResult struct {
	Outcome Outcome
	// Image is the media reference the record holds after the update.
	Image string
	// MediaErr is the upload failure when Outcome is OutcomeSavedWithoutMedia.
	MediaErr error
}

// DeleteResult reports what happened to the media of a deleted record.
type DeleteResult struct {
	Image     string
	Reclaimed bool
	MediaErr  error
}

// Config configures the coordinator.
type Config struct {
	// Buckets names the media bucket of each content type.
	Buckets        map[model.ContentType]string
	StorageTimeout time.Duration
}

// Service exposes one coordinator per content collection.
type Service struct {
	News       *Collection[model.NewsItem, model.NewsDraft, model.NewsPatch]
	Events     *Collection[model.Event, model.EventDraft, model.EventPatch]
	Gallery    *Collection[model.GalleryItem, model.GalleryDraft, model.GalleryPatch]
	Leadership *Collection[model.LeadershipEntry, model.LeadershipDraft, model.LeadershipPatch]

	store   *store.Store
	media   objstore.Store
	buckets map[model.ContentType]string
	clean   *Sanitizer
	logger  *slog.Logger
}

// New wires the collections over st and media.
func New(st *store.Store, media objstore.Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	buckets := make(map[model.ContentType]string, len(model.ContentTypes))
	for _, t := range model.ContentTypes {
		buckets[t] = string(t)
		if b := cfg.Buckets[t]; b != "" {
			buckets[t] = b
		}
	}

	s := &Service{
		store:   st,
		media:   media,
		buckets: buckets,
		clean:   NewSanitizer(),
		logger:  logger.With("component", "content"),
	}
	base := collectionBase{
		media:   media,
		retain:  st,
		timeout: cfg.StorageTimeout,
		logger:  s.logger,
	}

	s.News = newCollection(base.forType(model.TypeNews, buckets), st.News, st.News, newsRules(s.clean))
	s.Events = newCollection(base.forType(model.TypeEvents, buckets), st.Events, st.Events, eventRules(s.clean))
	s.Gallery = newCollection(base.forType(model.TypeGallery, buckets), st.Gallery, st.Gallery, galleryRules(s.clean))
	s.Leadership = newCollection(base.forType(model.TypeLeadership, buckets), st.Leadership, nil, leadershipRules(s.clean))
	return s
}

// Bucket returns the media bucket of t.
func (s *Service) Bucket(t model.ContentType) string {
	return s.buckets[t]
}

// PublicURL derives the public address of a media reference of type t.
// An empty reference yields an empty URL.
func (s *Service) PublicURL(t model.ContentType, path string) string {
	if path == "" {
		return ""
	}
	return s.media.PublicURL(s.buckets[t], path)
}

// Sanitizer returns the content hygiene policies in use.
func (s *Service) Sanitizer() *Sanitizer {
	return s.clean
}

// Publisher returns the publish gate operations of t.
func (s *Service) Publisher(t model.ContentType) (Publisher, error) {
	switch t {
	case model.TypeNews:
		return s.News, nil
	case model.TypeEvents:
		return s.Events, nil
	case model.TypeGallery:
		return s.Gallery, nil
	case model.TypeLeadership:
		return nil, ErrNotPublishable
	}
	return nil, fmt.Errorf("unknown content type %q", t)
}

// Deleter returns the delete operation of t.
func (s *Service) Deleter(t model.ContentType) (Deleter, error) {
	switch t {
	case model.TypeNews:
		return s.News, nil
	case model.TypeEvents:
		return s.Events, nil
	case model.TypeGallery:
		return s.Gallery, nil
	case model.TypeLeadership:
		return s.Leadership, nil
	}
	return nil, fmt.Errorf("unknown content type %q", t)
}

// classify maps store errors onto the service taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrDuplicate
	case errors.Is(err, ErrStorageUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
