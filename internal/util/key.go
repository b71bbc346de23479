// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ValidObjectKey reports whether key is a relative slash-separated object
// path with no traversal, empty or hidden segments.
func ValidObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	if path.Clean(key) != key {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// JoinKey joins key segments below base and rejects results that escape it.
func JoinKey(base string, key ...string) (string, error) {
	rel := path.Join(key...)
	if !ValidObjectKey(rel) {
		return "", fmt.Errorf("invalid object key: %q", rel)
	}
	full := filepath.Join(base, filepath.FromSlash(rel))
	cleanBase := filepath.Clean(base)
	if full != cleanBase && !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("object key escapes base directory: %q", rel)
	}
	return full, nil
}
