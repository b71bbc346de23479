// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// NewsItem is a club news post.
type NewsItem struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	Category     string       `json:"category"`
	CategorySlug string       `json:"category_slug"`
	Status       PublishState `json:"status"`
	Image        string       `json:"image,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
}

// NewsDraft holds the fields supplied when creating a news post.
type NewsDraft struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category"`
	Published *bool  `json:"published,omitempty"`
}

// NewsPatch holds the fields to change on a news post. Nil fields are left as is.
type NewsPatch struct {
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
	Category *string `json:"category,omitempty"`

	IfUnmodifiedSince *time.Time `json:"if_unmodified_since,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p NewsPatch) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Category == nil
}
