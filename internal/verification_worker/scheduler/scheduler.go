// Package scheduler drives the deadline sweep on a fixed interval. The sweep
// itself is idempotent, so the exact cadence only affects how quickly expired
// sessions get resolved, never the outcome.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/verification-workflow-engine/internal/config"
	"github.com/verification-workflow-engine/internal/sweep"
)

// Scheduler triggers periodic sweep passes
type Scheduler struct {
	sweepService sweep.Service
	interval     time.Duration
	logger       *slog.Logger
}

// NewScheduler creates a sweep scheduler
func NewScheduler(logger *slog.Logger, sweepService sweep.Service, cfg *config.SweepConfig) *Scheduler {
	return &Scheduler{
		sweepService: sweepService,
		interval:     cfg.Interval,
		logger:       logger,
	}
}

// Start runs the sweep loop until the context is canceled. One pass runs
// immediately so a restart never delays overdue resolutions by a full tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting sweep scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweep scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.sweepService.RunSweepOnce(ctx)
	if err != nil {
		// A failed pass is retried on the next tick
		s.logger.Error("Sweep pass failed", "error", err)
		return
	}

	if summary.ProcessedCount == 0 {
		s.logger.Debug("Sweep pass found no expired sessions")
		return
	}

	s.logger.Info("Sweep pass completed",
		"processed", summary.ProcessedCount,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount,
		"skipped", summary.SkippedCount,
		"auto_approved_transactions", summary.TotalAutoApproved,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
}
