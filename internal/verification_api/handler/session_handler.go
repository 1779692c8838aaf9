package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
	"github.com/verification-workflow-engine/internal/verification_api/middleware"
	"github.com/verification-workflow-engine/internal/verification_api/service"
)

// SessionHandler handles HTTP requests for session and decision operations
type SessionHandler struct {
	sessionService service.SessionService
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(logger *slog.Logger, sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger,
	}
}

// GetByID retrieves a session snapshot with its deadline classification
func (h *SessionHandler) GetByID(c *gin.Context) {
	sessionID, ok := h.parseUUIDParam(c, "id", "Invalid session ID")
	if !ok {
		return
	}

	sess, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondOK(c, mapSessionToResponse(sess, time.Now()))
}

// GetPendingTransactions returns the review queue in stable batch order
func (h *SessionHandler) GetPendingTransactions(c *gin.Context) {
	sessionID, ok := h.parseUUIDParam(c, "id", "Invalid session ID")
	if !ok {
		return
	}

	sess, pending, err := h.sessionService.GetPendingTransactions(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(pending))
	for _, txn := range pending {
		transactions = append(transactions, mapTransactionToResponse(txn))
	}

	RespondOK(c, PendingTransactionsResponse{
		Session:      mapSessionToResponse(sess, time.Now()),
		Transactions: transactions,
	})
}

// RecordDecision applies a human decision to one transaction of the session
func (h *SessionHandler) RecordDecision(c *gin.Context) {
	sessionID, ok := h.parseUUIDParam(c, "id", "Invalid session ID")
	if !ok {
		return
	}
	transactionID, ok := h.parseUUIDParam(c, "transaction_id", "Invalid transaction ID")
	if !ok {
		return
	}

	var req RecordDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid decision request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cmd := service.RecordDecisionCommand{
		SessionID:       sessionID,
		TransactionID:   transactionID,
		Decision:        shared.Decision(req.Decision),
		RejectionReason: shared.RejectionReason(req.RejectionReason),
		BusinessNote:    req.BusinessNote,
		Actor:           req.DecidedBy,
		CorrelationID:   middleware.GetCorrelationID(c),
	}

	sess, txn, err := h.sessionService.RecordDecision(c.Request.Context(), cmd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondOK(c, DecisionResponse{
		Transaction: mapTransactionToResponse(txn),
		Session:     mapSessionToResponse(sess, time.Now()),
	})
}

// Pause suspends an in-progress session
func (h *SessionHandler) Pause(c *gin.Context) {
	h.transition(c, h.sessionService.Pause)
}

// Resume returns a paused session to in-progress
func (h *SessionHandler) Resume(c *gin.Context) {
	h.transition(c, h.sessionService.Resume)
}

func (h *SessionHandler) transition(c *gin.Context, action func(context.Context, uuid.UUID, string, string) (*session.Session, error)) {
	sessionID, ok := h.parseUUIDParam(c, "id", "Invalid session ID")
	if !ok {
		return
	}

	var req SessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid session action body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sess, err := action(c.Request.Context(), sessionID, req.RequestedBy, middleware.GetCorrelationID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondOK(c, mapSessionToResponse(sess, time.Now()))
}

func (h *SessionHandler) parseUUIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	param := c.Param(name)
	id, err := uuid.Parse(param)
	if err != nil {
		h.logger.Error("Invalid UUID path parameter", "param", name, "value", param, "error", err)
		RespondBadRequest(c, message)
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps engine errors onto the HTTP taxonomy. Client-caused
// errors are surfaced verbatim; transient storage failures get a retryable
// 503 so the caller can repeat the idempotent operation.
func (h *SessionHandler) respondError(c *gin.Context, err error) {
	var validationErr shared.ValidationError
	var invalidTransition session.ErrInvalidTransition
	var alreadyDecided verification.ErrAlreadyDecided
	var concurrentMod session.ErrConcurrentModification

	switch {
	case errors.As(err, &validationErr):
		RespondBadRequest(c, validationErr.Message)
	case errors.Is(err, session.ErrSessionNotFound{}):
		RespondNotFound(c, "Session not found")
	case errors.Is(err, verification.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, verification.ErrNotInSession{}):
		RespondForbidden(c, "Transaction does not belong to this session")
	case errors.As(err, &invalidTransition):
		RespondConflict(c, "INVALID_STATE", invalidTransition.Error())
	case errors.As(err, &alreadyDecided):
		RespondConflict(c, "ALREADY_DECIDED", alreadyDecided.Error())
	case errors.As(err, &concurrentMod):
		RespondConflict(c, "CONCURRENT_MODIFICATION", concurrentMod.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("Storage operation timed out", "error", err)
		RespondServiceUnavailable(c)
	default:
		h.logger.Error("Unhandled service error", "error", err)
		RespondInternalError(c)
	}
}
