// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"

	"github.com/olegiv/clubcms/internal/model"
)

// MaxBatchFiles caps the number of photos in one gallery batch.
const MaxBatchFiles = 20

// BatchResult is the outcome of one file in a gallery batch.
type BatchResult struct {
	Filename string `json:"filename"`
	ID       int64  `json:"id,omitempty"`
	Err      error  `json:"-"`
}

// CreateGalleryBatch adds one photo per upload, all sharing draft. Each file
// is created independently; a failure does not affect the others.
func (s *Service) CreateGalleryBatch(ctx context.Context, draft model.GalleryDraft, uploads []Upload) ([]BatchResult, error) {
	errs := fieldErrors{}
	switch {
	case len(uploads) == 0:
		errs.add("images", "at least one image is required")
	case len(uploads) > MaxBatchFiles:
		errs.add("images", "too many files")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(uploads))
	created := 0
	for i := range uploads {
		up := &uploads[i]
		id, err := s.Gallery.Create(ctx, draft, up)
		results[i] = BatchResult{Filename: up.Filename, ID: id, Err: err}
		if err == nil {
			created++
		}
		if ctx.Err() != nil {
			for j := i + 1; j < len(uploads); j++ {
				results[j] = BatchResult{Filename: uploads[j].Filename, Err: ctx.Err()}
			}
			break
		}
	}

	s.logger.Info("gallery batch processed", "files", len(uploads), "created", created)
	return results, nil
}
