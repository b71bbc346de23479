// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package objstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	updated     time.Time
}

// Memory is an in-process store for development and tests. Failures can be
// injected per operation.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject // bucket + "/" + key
	baseURL string
	now     func() time.Time

	putErr    error
	deleteErr error
	listErr   error
}

// NewMemory creates an empty in-memory store.
func NewMemory(baseURL string) *Memory {
	return &Memory{
		objects: make(map[string]memObject),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// FailPuts makes subsequent Put calls fail with err. Pass nil to recover.
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// FailDeletes makes subsequent Delete calls fail with err.
func (m *Memory) FailDeletes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// FailLists makes subsequent List calls fail with err.
func (m *Memory) FailLists(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// SetClock overrides the clock used for object timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Keys returns the sorted keys stored in bucket.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if rest, ok := strings.CutPrefix(k, bucket+"/"); ok {
			keys = append(keys, rest)
		}
	}
	slices.Sort(keys)
	return keys
}

// Read returns the stored bytes of an object.
func (m *Memory) Read(bucket, path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+path]
	if !ok {
		return nil, false
	}
	return bytes.Clone(o.data), true
}

// Put stores the content under a new key.
func (m *Memory) Put(ctx context.Context, bucket, prefix string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("put", err)
	}
	m.mu.Lock()
	putErr := m.putErr
	m.mu.Unlock()
	if putErr != nil {
		return "", unavailable("put", putErr)
	}

	data, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
	if err != nil {
		return "", unavailable("put", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := newKey(prefix, contentType)
	for {
		if _, taken := m.objects[bucket+"/"+key]; !taken {
			break
		}
		key = newKey(prefix, contentType)
	}
	m.objects[bucket+"/"+key] = memObject{data: data, contentType: contentType, updated: m.now()}
	return key, nil
}

// PublicURL returns <baseURL>/<bucket>/<path>.
func (m *Memory) PublicURL(bucket, path string) string {
	return m.baseURL + "/" + bucket + "/" + path
}

// Delete removes the object if present.
func (m *Memory) Delete(ctx context.Context, bucket, path string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return unavailable("delete", m.deleteErr)
	}
	delete(m.objects, bucket+"/"+path)
	return nil
}

// Exists reports whether the object is present.
func (m *Memory) Exists(ctx context.Context, bucket, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("stat", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+path]
	return ok, nil
}

// List returns the objects in bucket whose keys start with prefix.
func (m *Memory) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, unavailable("list", m.listErr)
	}

	var out []ObjectInfo
	for k, o := range m.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, ObjectInfo{Path: key, Size: int64(len(o.data)), Updated: o.updated})
	}
	slices.SortFunc(out, func(a, b ObjectInfo) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

var _ Store = (*Memory)(nil)
