// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify carries per-collection change signals from the record
// store to observers such as the dashboard summary.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("notify: bus closed")

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 64

// publishTimeout bounds a hook-triggered publish.
const publishTimeout = 5 * time.Second

// Publisher accepts change signals.
type Publisher interface {
	Publish(ctx context.Context, c model.Change) error
}

// Bus delivers change signals to subscribers keyed by content type.
type Bus interface {
	Publisher
	// Subscribe returns a subscription for the given types, or for every
	// type when none are named.
	Subscribe(ctx context.Context, types ...model.ContentType) (*Subscription, error)
	Close() error
}

// Subscription receives change signals. Delivery never blocks the
// publisher: when C is full the signal is dropped and the subscription is
// marked lagged, so the consumer knows to recount everything.
type Subscription struct {
	ch     chan model.Change
	types  []model.ContentType
	lagged atomic.Bool
	once   sync.Once
	stop   func()
}

func newSubscription(buffer int, types []model.ContentType, stop func()) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscription{
		ch:    make(chan model.Change, buffer),
		types: slices.Clone(types),
		stop:  stop,
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan model.Change {
	return s.ch
}

// TakeLagged reports whether signals were dropped since the last call and
// clears the flag.
func (s *Subscription) TakeLagged() bool {
	return s.lagged.Swap(false)
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

func (s *Subscription) wants(t model.ContentType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// offer delivers c without blocking. Callers must hold whatever lock
// guards the channel against a concurrent close.
func (s *Subscription) offer(c model.Change) {
	select {
	case s.ch <- c:
	default:
		s.lagged.Store(true)
	}
}

// Hook adapts p into a record store change hook. The publish outlives the
// request context so a client disconnect cannot swallow the signal.
func Hook(p Publisher, logger *slog.Logger) func(ctx context.Context, c model.Change) {
	return func(ctx context.Context, c model.Change) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, c); err != nil {
			logger.Warn("failed to publish change",
				"error", err,
				"type", c.Type,
				"op", c.Op,
				"id", c.ID,
				"category", model.AuditCategorySystem)
		}
	}
}
