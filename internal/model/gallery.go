// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// GalleryItem is a photo in the club gallery. Image is always set.
type GalleryItem struct {
	ID           int64        `json:"id"`
	Category     string       `json:"category"`
	CategorySlug string       `json:"category_slug"`
	Status       PublishState `json:"status"`
	Image        string       `json:"image"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
}

// GalleryDraft holds the fields supplied when adding a gallery photo.
type GalleryDraft struct {
	Category  string `json:"category"`
	Published *bool  `json:"published,omitempty"`
}

// GalleryPatch holds the fields to change on a gallery photo.
type GalleryPatch struct {
	Category *string `json:"category,omitempty"`

	IfUnmodifiedSince *time.Time `json:"if_unmodified_since,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p GalleryPatch) Empty() bool {
	return p.Category == nil
}
