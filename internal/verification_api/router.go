package verification_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/verification-workflow-engine/internal/verification_api/handler"
	"github.com/verification-workflow-engine/internal/verification_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	sessionHandler *handler.SessionHandler,
	auditHandler *handler.AuditHandler,
	sweepHandler *handler.SweepHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Session review operations
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id", sessionHandler.GetByID)
			sessions.GET("/:id/transactions", sessionHandler.GetPendingTransactions)
			sessions.POST("/:id/transactions/:transaction_id/decision", sessionHandler.RecordDecision)
			sessions.POST("/:id/pause", sessionHandler.Pause)
			sessions.POST("/:id/resume", sessionHandler.Resume)
			sessions.GET("/:id/audit", auditHandler.GetSessionTrail)
		}

		// Transaction-scoped audit trail
		v1.GET("/transactions/:id/audit", auditHandler.GetTransactionTrail)

		// On-demand sweep run, same pass the scheduler triggers
		v1.POST("/sweep/run", sweepHandler.Run)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
