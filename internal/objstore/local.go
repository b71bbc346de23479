// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/olegiv/clubcms/internal/util"
)

// Local stores objects on the filesystem as <root>/<bucket>/<key>.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates a filesystem store rooted at root. Public URLs are
// formed as <baseURL>/<bucket>/<key>.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory that holds the buckets.
func (l *Local) Root() string {
	return l.root
}

// Put writes r to a new file. O_EXCL guarantees an existing object is never replaced.
func (l *Local) Put(ctx context.Context, bucket, prefix string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("put", err)
	}
	key := newKey(prefix, contentType)
	full, err := util.JoinKey(l.root, bucket, key)
	if err != nil {
		return "", unavailable("put", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", unavailable("put", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", unavailable("put", err)
	}
	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", unavailable("put", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", unavailable("put", err)
	}
	return key, nil
}

// PublicURL returns <baseURL>/<bucket>/<path>.
func (l *Local) PublicURL(bucket, path string) string {
	return l.baseURL + "/" + bucket + "/" + path
}

// Delete removes the file. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, bucket, path string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	full, err := util.JoinKey(l.root, bucket, path)
	if err != nil {
		return unavailable("delete", err)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable("delete", err)
	}
	return nil
}

// Exists reports whether the file is present.
func (l *Local) Exists(ctx context.Context, bucket, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("stat", err)
	}
	full, err := util.JoinKey(l.root, bucket, path)
	if err != nil {
		return false, unavailable("stat", err)
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("stat", err)
	}
	return true, nil
}

// List walks the bucket below prefix.
func (l *Local) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	bucketDir, err := util.JoinKey(l.root, bucket)
	if err != nil {
		return nil, unavailable("list", err)
	}
	start := bucketDir
	if prefix != "" {
		if start, err = util.JoinKey(bucketDir, prefix); err != nil {
			return nil, unavailable("list", err)
		}
	}

	var out []ObjectInfo
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Path: filepath.ToSlash(rel), Size: info.Size(), Updated: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

var _ Store = (*Local)(nil)
