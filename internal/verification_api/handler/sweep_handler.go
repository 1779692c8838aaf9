package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/verification-workflow-engine/internal/sweep"
)

// SweepHandler exposes the deadline sweep for on-demand runs
type SweepHandler struct {
	sweepService sweep.Service
	logger       *slog.Logger
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(logger *slog.Logger, sweepService sweep.Service) *SweepHandler {
	return &SweepHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// Run executes a single sweep pass and returns its summary. The sweep is
// idempotent, so running it on demand alongside the scheduler is safe.
func (h *SweepHandler) Run(c *gin.Context) {
	summary, err := h.sweepService.RunSweepOnce(c.Request.Context())
	if err != nil {
		h.logger.Error("On-demand sweep failed", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, summary)
}
