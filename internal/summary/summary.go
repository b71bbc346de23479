// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package summary maintains the per-type record counts shown on the
// admin dashboard and fans fresh snapshots out to watchers.
package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/notify"
)

// Counter returns the exact number of records of a type.
type Counter interface {
	Count(ctx context.Context, t model.ContentType) (int64, error)
}

// Subscriber opens change subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, types ...model.ContentType) (*notify.Subscription, error)
}

// DefaultRetryInterval is how often counts that failed are retried.
const DefaultRetryInterval = 5 * time.Second

// View recounts a type whenever a change signal for it arrives. Counts are
// recomputed, never adjusted by deltas, so duplicate signals are harmless.
type View struct {
	counter Counter
	bus     Subscriber
	logger  *slog.Logger
	now     func() time.Time
	retry   time.Duration

	mu       sync.RWMutex
	current  model.Summary
	stale    map[model.ContentType]bool
	watchers map[int]chan model.Summary
	nextID   int
	// closed is set once Run has returned; watch channels are closed then.
	closed bool
}

// Option configures a View.
type Option func(*View)

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithRetryInterval sets how often failed counts are retried.
func WithRetryInterval(d time.Duration) Option {
	return func(v *View) { v.retry = d }
}

// New creates a View. Call Run to start it.
func New(counter Counter, bus Subscriber, logger *slog.Logger, opts ...Option) *View {
	v := &View{
		counter:  counter,
		bus:      bus,
		logger:   logger.With("component", "summary"),
		now:      time.Now,
		retry:    DefaultRetryInterval,
		current:  model.Summary{Counts: make(map[model.ContentType]int64, len(model.ContentTypes))},
		stale:    make(map[model.ContentType]bool),
		watchers: make(map[int]chan model.Summary),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run subscribes to changes, performs a full recount and then follows the
// change stream until ctx is done or the bus closes the subscription.
// Subscribing before the first count means no signal can fall in between.
func (v *View) Run(ctx context.Context) error {
	sub, err := v.bus.Subscribe(ctx, model.ContentTypes...)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer v.closeWatchers()

	v.Refresh(ctx)

	ticker := time.NewTicker(v.retry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v.retryStale(ctx)
		case c, ok := <-sub.C():
			if !ok {
				v.logger.Info("change subscription closed")
				return nil
			}
			if sub.TakeLagged() {
				v.logger.Warn("change signals dropped, recounting all types",
					"category", model.AuditCategorySystem)
				v.Refresh(ctx)
				continue
			}
			if c.Op == model.OpResync {
				v.logger.Debug("resync requested", "type", c.Type)
			}
			v.recount(ctx, c.Type)
		}
	}
}

// Refresh recounts every type and publishes one snapshot.
func (v *View) Refresh(ctx context.Context) {
	counts := make(map[model.ContentType]int64, len(model.ContentTypes))
	failed := make(map[model.ContentType]bool)
	for _, t := range model.ContentTypes {
		n, err := v.counter.Count(ctx, t)
		if err != nil {
			v.logger.Warn("failed to count records", "error", err, "type", t)
			failed[t] = true
			continue
		}
		counts[t] = n
	}
	v.apply(counts, failed)
}

func (v *View) recount(ctx context.Context, t model.ContentType) {
	if _, ok := model.ParseContentType(string(t)); !ok {
		return
	}
	n, err := v.counter.Count(ctx, t)
	if err != nil {
		v.logger.Warn("failed to count records", "error", err, "type", t)
		v.apply(nil, map[model.ContentType]bool{t: true})
		return
	}
	v.apply(map[model.ContentType]int64{t: n}, nil)
}

func (v *View) retryStale(ctx context.Context) {
	v.mu.RLock()
	var types []model.ContentType
	for t := range v.stale {
		types = append(types, t)
	}
	v.mu.RUnlock()

	for _, t := range types {
		v.recount(ctx, t)
	}
}

// apply merges fresh counts and notifies watchers.
func (v *View) apply(counts map[model.ContentType]int64, failed map[model.ContentType]bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for t, n := range counts {
		v.current.Counts[t] = n
		delete(v.stale, t)
	}
	for t := range failed {
		v.stale[t] = true
	}
	if len(counts) == 0 {
		return
	}
	v.current.UpdatedAt = v.now().UTC()

	snap := v.current.Clone()
	for _, ch := range v.watchers {
		deliverLatest(ch, snap)
	}
}

// closeWatchers ends every watch. Later watchers get the last snapshot on
// an already closed channel.
func (v *View) closeWatchers() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for id, ch := range v.watchers {
		close(ch)
		delete(v.watchers, id)
	}
}

// Snapshot returns the current counts.
func (v *View) Snapshot() model.Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current.Clone()
}

// Watch returns a channel that always holds the most recent snapshot not
// yet read. Slow readers skip intermediate snapshots and never block the
// view. The current snapshot is delivered immediately. The channel is
// closed when Run returns. Call the returned function to stop watching.
func (v *View) Watch() (<-chan model.Summary, func()) {
	ch := make(chan model.Summary, 1)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = ch
	ch <- v.current.Clone()
	if v.closed {
		close(ch)
		delete(v.watchers, id)
	}
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, id)
			v.mu.Unlock()
		})
	}
}

// WatcherCount returns the number of active watchers.
func (v *View) WatcherCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.watchers)
}

func deliverLatest(ch chan model.Summary, s model.Summary) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
