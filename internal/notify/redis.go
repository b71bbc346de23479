// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olegiv/clubcms/internal/model"
)

// RedisBusOptions configures the Redis change bus.
type RedisBusOptions struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to channel names (e.g., "clubcms:")
	Prefix string

	// Buffer is the per-subscription channel capacity
	Buffer int

	// ConnectTimeout is the timeout for establishing a connection
	ConnectTimeout time.Duration
}

// RedisBus publishes change signals over Redis pub/sub with one channel per
// content type, so several server instances share one view of changes.
type RedisBus struct {
	client *redis.Client
	prefix string
	buffer int
	logger *slog.Logger
	owned  bool
	closed atomic.Bool
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, opts RedisBusOptions, logger *slog.Logger) (*RedisBus, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.ConnectTimeout > 0 {
		redisOpts.DialTimeout = opts.ConnectTimeout
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	b := NewRedisBusWithClient(client, opts.Prefix, opts.Buffer, logger)
	b.owned = true
	return b, nil
}

// NewRedisBusWithClient uses an existing client. Close leaves it open.
func NewRedisBusWithClient(client *redis.Client, prefix string, buffer int, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		prefix: prefix,
		buffer: buffer,
		logger: logger.With("component", "redis_bus"),
	}
}

func (b *RedisBus) channel(t model.ContentType) string {
	return b.prefix + "changes:" + string(t)
}

func (b *RedisBus) contentType(channel string) (model.ContentType, bool) {
	name, ok := strings.CutPrefix(channel, b.prefix+"changes:")
	if !ok {
		return "", false
	}
	return model.ParseContentType(name)
}

// Publish sends c on its type's channel.
func (b *RedisBus) Publish(ctx context.Context, c model.Change) error {
	if b.closed.Load() {
		return ErrClosed
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(c.Type), raw).Err()
}

// Subscribe listens on the channels of the given types. Each subscribe
// confirmation, including those sent when go-redis re-establishes the
// subscription after a dropped connection, is delivered as a resync
// signal for that type so the consumer recounts what it may have missed.
func (b *RedisBus) Subscribe(ctx context.Context, types ...model.ContentType) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if len(types) == 0 {
		types = model.ContentTypes
	}
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = b.channel(t)
	}

	ps := b.client.Subscribe(ctx, channels...)
	// Ensures the subscription actually started.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	fwdCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := newSubscription(b.buffer, types, func() {
		cancel()
		_ = ps.Close()
	})
	go b.forward(fwdCtx, ps, sub)
	return sub, nil
}

// forward owns sub.ch and closes it on exit.
func (b *RedisBus) forward(ctx context.Context, ps *redis.PubSub, sub *Subscription) {
	defer close(sub.ch)
	in := ps.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			switch m := m.(type) {
			case *redis.Subscription:
				if m.Kind != "subscribe" {
					continue
				}
				if t, ok := b.contentType(m.Channel); ok {
					b.logger.Debug("subscription confirmed", "channel", m.Channel)
					sub.offer(model.Change{Type: t, Op: model.OpResync, At: time.Now().UTC()})
				}
			case *redis.Message:
				var c model.Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					b.logger.Warn("bad change payload", "error", err, "channel", m.Channel)
					continue
				}
				if t, ok := b.contentType(m.Channel); ok {
					c.Type = t
				}
				sub.offer(c)
			}
		}
	}
}

// Close stops publishing. Subscriptions end when closed by their owners
// or when the client connection is closed.
func (b *RedisBus) Close() error {
	if b.closed.Swap(true) || !b.owned {
		return nil
	}
	return b.client.Close()
}
