// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Audit levels
const (
	AuditLevelInfo    = "info"
	AuditLevelWarning = "warning"
	AuditLevelError   = "error"
)

// Audit categories
const (
	AuditCategoryAuth     = "auth"
	AuditCategoryContent  = "content"
	AuditCategoryMedia    = "media"
	AuditCategoryConflict = "conflict"
	AuditCategorySystem   = "system"
)

// AuditEntry is a persisted log record.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"` // JSON object
	CreatedAt time.Time `json:"created_at"`
}
