// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the club content records and the value types
// shared by the store, service and transport layers.
package model

// ContentType identifies one of the managed content collections.
type ContentType string

// Content types
const (
	TypeNews       ContentType = "news"
	TypeEvents     ContentType = "events"
	TypeGallery    ContentType = "gallery"
	TypeLeadership ContentType = "leadership"
)

// ContentTypes lists every content type in dashboard order.
var ContentTypes = []ContentType{TypeNews, TypeEvents, TypeGallery, TypeLeadership}

// ParseContentType returns the content type named by s.
func ParseContentType(s string) (ContentType, bool) {
	for _, t := range ContentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Publishable reports whether records of this type carry a publish state.
func (t ContentType) Publishable() bool {
	return t != TypeLeadership
}

// MediaPrefix returns the object key prefix used for uploads of this type.
func (t ContentType) MediaPrefix() string {
	if t == TypeLeadership {
		return "leaders"
	}
	return string(t)
}

func (t ContentType) String() string {
	return string(t)
}
