// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage backend.
type GCSOptions struct {
	// CredentialsFile is a service account JSON file. Inline JSON is also
	// accepted. Empty means application default credentials.
	CredentialsFile string
	// CDNDomain serves objects as https://<CDNDomain>/<key> when set.
	CDNDomain string
	// PublicBaseURL serves objects as <PublicBaseURL>/<bucket>/<key> when
	// set and no CDN domain is configured.
	PublicBaseURL string
}

// GCS stores objects in Google Cloud Storage buckets.
type GCS struct {
	client    *storage.Client
	cdnDomain string
	baseURL   string
}

// NewGCS creates a GCS-backed store.
func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(opts.CredentialsFile); creds != "" {
		if strings.HasPrefix(creds, "{") {
			clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			clientOpts = append(clientOpts, option.WithCredentialsFile(creds))
		}
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewGCSWithClient(client, opts), nil
}

// NewGCSWithClient wraps an existing storage client.
func NewGCSWithClient(client *storage.Client, opts GCSOptions) *GCS {
	return &GCS{
		client:    client,
		cdnDomain: strings.TrimRight(opts.CDNDomain, "/"),
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
	}
}

// Put uploads r under a new key. The DoesNotExist precondition makes GCS
// reject the write rather than replace an existing object.
func (g *GCS) Put(ctx context.Context, bucket, prefix string, r io.Reader, contentType string) (string, error) {
	key := newKey(prefix, contentType)
	obj := g.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", unavailable("put", err)
	}
	if err := w.Close(); err != nil {
		return "", unavailable("put", err)
	}
	return key, nil
}

// PublicURL prefers the CDN domain, then the configured base URL, then the
// public storage endpoint.
func (g *GCS) PublicURL(bucket, path string) string {
	switch {
	case g.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", g.cdnDomain, path)
	case g.baseURL != "":
		return g.baseURL + "/" + bucket + "/" + path
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, path)
	}
}

// Delete removes the object. A missing object is not an error.
func (g *GCS) Delete(ctx context.Context, bucket, path string) error {
	err := g.client.Bucket(bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return unavailable("delete", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (g *GCS) Exists(ctx context.Context, bucket, path string) (bool, error) {
	_, err := g.client.Bucket(bucket).Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("stat", err)
	}
	return true, nil
}

// List returns the objects in bucket whose names start with prefix.
func (g *GCS) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, unavailable("list", err)
		}
		out = append(out, ObjectInfo{Path: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

var _ Store = (*GCS)(nil)
