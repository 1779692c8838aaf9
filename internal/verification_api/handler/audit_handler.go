package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/verification-workflow-engine/internal/verification_api/service"
)

// AuditHandler handles HTTP requests for the compliance audit trail
type AuditHandler struct {
	auditService service.AuditService
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *slog.Logger, auditService service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// GetSessionTrail returns a session's audit entries, optionally restricted to
// a time range via from/to query parameters
func (h *AuditHandler) GetSessionTrail(c *gin.Context) {
	sessionIDParam := c.Param("id")
	sessionID, err := uuid.Parse(sessionIDParam)
	if err != nil {
		h.logger.Error("Invalid session ID", "id", sessionIDParam, "error", err)
		RespondBadRequest(c, "Invalid session ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	var timeRange TimeRangeParams
	if err := c.ShouldBindQuery(&timeRange); err != nil {
		h.logger.Error("Invalid time range parameters", "error", err)
		RespondBadRequest(c, "Invalid time range parameters, expected RFC3339 timestamps")
		return
	}
	if (timeRange.From == nil) != (timeRange.To == nil) {
		RespondBadRequest(c, "Time range requires both from and to")
		return
	}

	entries, total, err := h.auditService.GetSessionTrail(
		c.Request.Context(),
		sessionID,
		timeRange.From,
		timeRange.To,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get session audit trail", "session_id", sessionIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapAuditEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// GetTransactionTrail returns the audit entries for one transaction
func (h *AuditHandler) GetTransactionTrail(c *gin.Context) {
	transactionIDParam := c.Param("id")
	transactionID, err := uuid.Parse(transactionIDParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", transactionIDParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, err := h.auditService.GetTransactionTrail(c.Request.Context(), transactionID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to get transaction audit trail", "transaction_id", transactionIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapAuditEntryToResponse(entry))
	}

	RespondOK(c, responses)
}
