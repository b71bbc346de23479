// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package objstore stores media blobs in named buckets. Every backend
// writes each upload under a fresh key and never overwrites an object.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable wraps every backend failure, including timeouts.
	ErrUnavailable = errors.New("object store unavailable")
	// ErrUnsupportedType is returned for uploads that are not an allowed image type.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("empty upload")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	Updated time.Time
}

// Store is the media storage adapter.
type Store interface {
	// Put writes r under a new unique key below prefix and returns the key.
	Put(ctx context.Context, bucket, prefix string, r io.Reader, contentType string) (string, error)
	// PublicURL derives the public address of an object. It does no I/O.
	PublicURL(bucket, path string) string
	// Delete removes an object. Deleting a missing object succeeds.
	Delete(ctx context.Context, bucket, path string) error
	// Exists reports whether the object is present.
	Exists(ctx context.Context, bucket, path string) (bool, error)
	// List returns the objects whose keys start with prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// newKey builds a collision-free object key for a blob of contentType.
func newKey(prefix, contentType string) string {
	key := uuid.NewString() + Extension(contentType)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// ctxReader fails reads once ctx is done so long uploads honor deadlines.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
