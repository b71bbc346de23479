// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that also persists WARN and
// ERROR records to the audit log.
package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// auditWriteTimeout bounds a single audit insert.
const auditWriteTimeout = 2 * time.Second

// AuditWriter persists audit entries. store.AuditStore implements it.
type AuditWriter interface {
	Insert(ctx context.Context, e model.AuditEntry) (int64, error)
}

// AuditHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level to an AuditWriter.
type AuditHandler struct {
	inner  slog.Handler
	audit  AuditWriter
	level  slog.Level
	attrs  []slog.Attr // from WithAttrs, already qualified by group
	prefix string      // current group prefix
}

// NewAuditHandler wraps inner. WARN and above are persisted.
func NewAuditHandler(inner slog.Handler, audit AuditWriter) *AuditHandler {
	return NewAuditHandlerWithLevel(inner, audit, slog.LevelWarn)
}

// NewAuditHandlerWithLevel wraps inner with a custom persistence threshold.
func NewAuditHandlerWithLevel(inner slog.Handler, audit AuditWriter, level slog.Level) *AuditHandler {
	return &AuditHandler{inner: inner, audit: audit, level: level}
}

// Enabled implements slog.Handler.
func (h *AuditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler. A failed audit write is dropped: logging
// it would recurse into this handler.
func (h *AuditHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level && h.audit != nil {
		h.write(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *AuditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.prefix, attrs)...)
	return &c
}

// WithGroup implements slog.Handler.
func (h *AuditHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.inner = h.inner.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

func (h *AuditHandler) write(ctx context.Context, r slog.Record) {
	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, qualify(h.prefix, []slog.Attr{a})...)
		return true
	})

	category := ""
	meta := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if a.Key == "category" {
			category = a.Value.String()
			continue
		}
		meta[a.Key] = attrValue(a.Value)
	}
	if category == "" {
		category = inferCategory(r.Message)
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		metadata = []byte("{}")
	}

	// The entry is written even when the request that logged it is canceled.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	_, _ = h.audit.Insert(wctx, model.AuditEntry{
		Level:     auditLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		Metadata:  string(metadata),
		CreatedAt: r.Time,
	})
}

// qualify flattens group attrs into dotted keys.
func qualify(prefix string, attrs []slog.Attr) []slog.Attr {
	var out []slog.Attr
	for _, a := range attrs {
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			p := prefix
			if a.Key != "" {
				p += a.Key + "."
			}
			out = append(out, qualify(p, v.Group())...)
			continue
		}
		if a.Key == "" {
			continue
		}
		key := a.Key
		if key != "category" {
			key = prefix + key
		}
		out = append(out, slog.Attr{Key: key, Value: v})
	}
	return out
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	}
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.String()
}

func auditLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.AuditLevelError
	case level >= slog.LevelWarn:
		return model.AuditLevelWarning
	default:
		return model.AuditLevelInfo
	}
}

// inferCategory guesses a category for records logged without one.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "conflict"):
		return model.AuditCategoryConflict
	case strings.Contains(msg, "login") || strings.Contains(msg, "auth") || strings.Contains(msg, "csrf"):
		return model.AuditCategoryAuth
	case strings.Contains(msg, "media") || strings.Contains(msg, "upload") || strings.Contains(msg, "object"):
		return model.AuditCategoryMedia
	case strings.Contains(msg, "record") || strings.Contains(msg, "publish"):
		return model.AuditCategoryContent
	default:
		return model.AuditCategorySystem
	}
}

// NewLogger builds the process logger: a text handler on w at level,
// wrapped with an AuditHandler when audit is non-nil.
func NewLogger(w io.Writer, level slog.Level, audit AuditWriter) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if audit != nil {
		h = NewAuditHandler(h, audit)
	}
	return slog.New(h)
}
