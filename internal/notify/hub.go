// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"sync"

	"github.com/olegiv/clubcms/internal/model"
)

// Hub is an in-process Bus for single-instance deployments.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer signals.
func NewHub(buffer int) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Publish fans c out to every interested subscription.
func (h *Hub) Publish(_ context.Context, c model.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs {
		if sub.wants(c.Type) {
			sub.offer(c)
		}
	}
	return nil
}

// Subscribe registers a new subscription.
func (h *Hub) Subscribe(_ context.Context, types ...model.ContentType) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = newSubscription(h.buffer, types, func() { h.remove(sub) })
	h.subs[sub] = struct{}{}
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Close ends every subscription and rejects further use.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
