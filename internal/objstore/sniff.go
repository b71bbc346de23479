// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package objstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected to detect the type.
const sniffLen = 3072

// Supported MIME types
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

var extensions = map[string]string{
	MimeTypeJPEG: ".jpg",
	MimeTypePNG:  ".png",
	MimeTypeGIF:  ".gif",
	MimeTypeWebP: ".webp",
}

// Extension returns the file extension for an allowed content type.
func Extension(contentType string) string {
	return extensions[contentType]
}

// Sniff detects the content type of an upload from its leading bytes and
// returns a reader that replays the full, unmodified content.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	if n == 0 {
		return "", nil, ErrEmpty
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	for ct := range extensions {
		if mt.Is(ct) {
			return ct, io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}
