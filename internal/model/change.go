// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"maps"
	"time"
)

// ChangeOp describes what happened to a collection.
type ChangeOp string

// Change operations
const (
	OpInsert  ChangeOp = "insert"
	OpUpdate  ChangeOp = "update"
	OpDelete  ChangeOp = "delete"
	OpPublish ChangeOp = "publish"
	// OpResync asks observers to recount because signals may have been missed.
	OpResync ChangeOp = "resync"
)

// Change is a signal that a collection was modified. It carries no
// record data; observers recompute whatever they derive from the type.
type Change struct {
	Type ContentType `json:"type"`
	Op   ChangeOp    `json:"op"`
	ID   int64       `json:"id,omitempty"`
	At   time.Time   `json:"at"`
}

// Summary holds per-type record counts for the dashboard.
type Summary struct {
	Counts    map[ContentType]int64 `json:"counts"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Count returns the count for t.
func (s Summary) Count(t ContentType) int64 {
	return s.Counts[t]
}

// Clone returns a copy that does not share the counts map.
func (s Summary) Clone() Summary {
	return Summary{Counts: maps.Clone(s.Counts), UpdatedAt: s.UpdatedAt}
}
