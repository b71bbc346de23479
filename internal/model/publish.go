// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// PublishState is the visibility state of a publishable record.
type PublishState string

// Publish states
const (
	StateDraft       PublishState = "draft"
	StatePublished   PublishState = "published"
	StateUnpublished PublishState = "unpublished"
)

// InitialState returns the state a new record starts in. Records are
// published on creation unless the author explicitly asks for a draft.
func InitialState(published *bool) PublishState {
	if published != nil && !*published {
		return StateDraft
	}
	return StatePublished
}

// Visible reports whether the public surface may return the record.
func (s PublishState) Visible() bool {
	return s == StatePublished
}

// Toggle returns the state after a publish toggle.
func (s PublishState) Toggle() PublishState {
	if s == StatePublished {
		return StateUnpublished
	}
	return StatePublished
}

// Valid reports whether s is a known state.
func (s PublishState) Valid() bool {
	switch s {
	case StateDraft, StatePublished, StateUnpublished:
		return true
	}
	return false
}
