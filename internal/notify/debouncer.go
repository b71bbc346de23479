// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the debounce window duration.
	// Signals for one type within this window are coalesced.
	Interval time.Duration
	// MaxWait is the maximum time to hold a signal.
	// Even if signals keep coming, forward after this time.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 250 * time.Millisecond,
		MaxWait:  2 * time.Second,
	}
}

type pendingChange struct {
	change    model.Change
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces bursts of signals per content type. A signal only
// asks observers to recount its type, so forwarding the latest one of a
// burst loses nothing.
type Debouncer struct {
	next    Publisher
	config  DebounceConfig
	logger  *slog.Logger
	pending map[model.ContentType]*pendingChange
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDebouncer creates a debouncer forwarding to next.
func NewDebouncer(next Publisher, config DebounceConfig, logger *slog.Logger) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		next:    next,
		config:  config,
		logger:  logger,
		pending: make(map[model.ContentType]*pendingChange),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Publish queues c for debounced delivery.
func (d *Debouncer) Publish(_ context.Context, c model.Change) error {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[c.Type]; ok {
		existing.change = c
		if now.Sub(existing.firstSeen) >= d.config.MaxWait {
			d.dispatchLocked(c.Type)
			return nil
		}
		existing.timer.Reset(d.config.Interval)
		return nil
	}

	pc := &pendingChange{change: c, firstSeen: now}
	pc.timer = time.AfterFunc(d.config.Interval, func() {
		d.mu.Lock()
		d.dispatchLocked(c.Type)
		d.mu.Unlock()
	})
	d.pending[c.Type] = pc
	return nil
}

// dispatchLocked forwards a pending signal. Must be called with lock held.
func (d *Debouncer) dispatchLocked(t model.ContentType) {
	pc, ok := d.pending[t]
	if !ok {
		return
	}
	pc.timer.Stop()
	delete(d.pending, t)

	d.wg.Add(1)
	go func(c model.Change) {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(d.ctx, publishTimeout)
		defer cancel()
		if err := d.next.Publish(ctx, c); err != nil {
			d.logger.Error("failed to forward debounced change",
				"error", err,
				"type", c.Type)
		}
	}(pc.change)
}

// Flush immediately forwards all pending signals.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for t := range d.pending {
		d.dispatchLocked(t)
	}
}

// Stop flushes pending signals and waits for them to be forwarded.
func (d *Debouncer) Stop() {
	d.Flush()
	d.wg.Wait()
	d.cancel()
}

// PendingCount returns the number of pending signals.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
