// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/clubcms/internal/util"
)

// Sanitizer applies the content hygiene policies. Single-line fields are
// stored as plain text; bodies are stored as written and sanitized when
// rendered.
type Sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
	md     goldmark.Markdown
}

// NewSanitizer creates the default policies.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Line strips all markup and collapses whitespace.
func (s *Sanitizer) Line(v string) string {
	return util.CleanLabel(html.UnescapeString(s.strict.Sanitize(v)))
}

// Text trims a multi-line field without altering its content.
func (s *Sanitizer) Text(v string) string {
	return strings.TrimSpace(v)
}

// RenderHTML renders Markdown and sanitizes the result with the UGC policy.
func (s *Sanitizer) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return s.ugc.Sanitize(buf.String()), nil
}
