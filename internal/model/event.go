// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event is a scheduled club event such as a tournament or meeting.
type Event struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	EventType     string       `json:"event_type"`
	EventTypeSlug string       `json:"event_type_slug"`
	Location      string       `json:"location"`
	StartsAt      time.Time    `json:"starts_at"`
	Status        PublishState `json:"status"`
	Image         string       `json:"image,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
}

// EventDraft holds the fields supplied when creating an event.
type EventDraft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventType   string    `json:"event_type"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	Published   *bool     `json:"published,omitempty"`
}

// EventPatch holds the fields to change on an event.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	EventType   *string    `json:"event_type,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`

	IfUnmodifiedSince *time.Time `json:"if_unmodified_since,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.EventType == nil &&
		p.Location == nil && p.StartsAt == nil
}
