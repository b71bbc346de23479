// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/objstore"
)

// DefaultReclaimGrace is how old an unreferenced blob must be before the
// sweep deletes it.
const DefaultReclaimGrace = 24 * time.Hour

// mediaIndex lists the media references held by records and the blobs
// kept when their record was deleted.
type mediaIndex interface {
	MediaPaths(ctx context.Context, t model.ContentType) ([]string, error)
	RetainedMediaPaths(ctx context.Context, t model.ContentType) ([]string, error)
}

// SweepReport summarizes one reclamation sweep.
type SweepReport struct {
	Scanned  int                          `json:"scanned"`
	Deleted  int                          `json:"deleted"`
	Retained int                          `json:"retained"`
	Failed   int                          `json:"failed"`
	PerType  map[model.ContentType]int    `json:"deleted_per_type"`
	Errors   map[model.ContentType]string `json:"errors,omitempty"`
}

// Reclaimer deletes blobs that no record references any more. Blobs newer
// than the grace period are kept: they may belong to a create still in
// flight or be served to readers that fetched the old URL. Blobs kept by a
// delete without reclamation are never swept.
type Reclaimer struct {
	index   mediaIndex
	media   objstore.Store
	buckets map[model.ContentType]string
	grace   time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewReclaimer creates a reclaimer over the service's stores.
func (s *Service) NewReclaimer(grace time.Duration) *Reclaimer {
	if grace <= 0 {
		grace = DefaultReclaimGrace
	}
	return &Reclaimer{
		index:   s.store,
		media:   s.media,
		buckets: s.buckets,
		grace:   grace,
		timeout: s.News.timeout,
		now:     time.Now,
		logger:  s.logger.With("job", "reclaim"),
	}
}

// ErrSweepRunning is returned when a sweep is already in progress.
var ErrSweepRunning = errors.New("reclamation sweep already running")

// Sweep runs one pass over every bucket. Failures for one type do not stop
// the others; the report lists them and the returned error wraps
// ErrStorageUnavailable if any type failed.
func (r *Reclaimer) Sweep(ctx context.Context) (SweepReport, error) {
	if !r.mu.TryLock() {
		return SweepReport{}, ErrSweepRunning
	}
	defer r.mu.Unlock()

	report := SweepReport{
		PerType: make(map[model.ContentType]int),
		Errors:  make(map[model.ContentType]string),
	}
	cutoff := r.now().Add(-r.grace)

	var failed []error
	for _, t := range model.ContentTypes {
		if err := r.sweepType(ctx, t, cutoff, &report); err != nil {
			report.Errors[t] = err.Error()
			failed = append(failed, err)
		}
	}

	r.logger.Info("reclamation sweep finished",
		"scanned", report.Scanned,
		"deleted", report.Deleted,
		"retained", report.Retained,
		"failed", report.Failed)
	if len(failed) > 0 {
		r.logger.Warn("reclamation sweep incomplete",
			"error", errors.Join(failed...),
			"category", model.AuditCategoryMedia)
		return report, classify(errors.Join(failed...))
	}
	return report, nil
}

func (r *Reclaimer) sweepType(ctx context.Context, t model.ContentType, cutoff time.Time, report *SweepReport) error {
	// Objects are listed before references are read so that a record
	// created in between keeps its blob.
	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	objects, err := r.media.List(lctx, r.buckets[t], t.MediaPrefix()+"/")
	cancel()
	if err != nil {
		return err
	}

	paths, err := r.index.MediaPaths(ctx, t)
	if err != nil {
		return err
	}
	retained, err := r.index.RetainedMediaPaths(ctx, t)
	if err != nil {
		return err
	}
	referenced := make(map[string]struct{}, len(paths)+len(retained))
	for _, p := range slices.Concat(paths, retained) {
		referenced[p] = struct{}{}
	}

	for _, obj := range objects {
		report.Scanned++
		if _, ok := referenced[obj.Path]; ok || obj.Updated.After(cutoff) {
			report.Retained++
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.media.Delete(dctx, r.buckets[t], obj.Path)
		cancel()
		if err != nil {
			report.Failed++
			r.logger.Warn("failed to reclaim blob", "type", t, "image", obj.Path, "error", err)
			continue
		}
		report.Deleted++
		report.PerType[t]++
		r.logger.Debug("reclaimed blob", "type", t, "image", obj.Path)
	}
	return nil
}
