// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/clubcms/internal/service"
)

// Job names.
const (
	JobReclaimMedia = "reclaim-media"
	JobPruneAudit   = "prune-audit"
)

// Sweeper runs a media reclamation sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// AuditPruner deletes old audit entries.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReclaimJob wraps a sweep as a job.
func ReclaimJob(sw Sweeper, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		report, err := sw.Sweep(ctx)
		logger.Info("media reclamation sweep finished",
			"scanned", report.Scanned,
			"deleted", report.Deleted,
			"retained", report.Retained,
			"failed", report.Failed,
		)
		return err
	}
}

// PruneAuditJob deletes audit entries older than retention.
func PruneAuditJob(p AuditPruner, retention time.Duration, now func() time.Time, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := p.DeleteBefore(ctx, now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned audit log", "deleted", n)
		}
		return nil
	}
}
