package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verification-workflow-engine/internal/domain/audit"
)

// AuditServiceImpl implements the AuditService interface
type AuditServiceImpl struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

// NewAuditService creates a new audit trail service
func NewAuditService(logger *slog.Logger, auditRepo audit.Repository) AuditService {
	return &AuditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// GetSessionTrail returns a session's audit entries in chronological order.
// When both bounds of the time range are present the query is restricted to it.
func (s *AuditServiceImpl) GetSessionTrail(ctx context.Context, sessionID uuid.UUID, from, to *time.Time, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	var (
		entries []*audit.Entry
		err     error
	)
	if from != nil && to != nil {
		entries, err = s.auditRepo.GetByTimeRange(ctx, sessionID, *from, *to, perPage, offset)
	} else {
		entries, err = s.auditRepo.GetBySessionID(ctx, sessionID, perPage, offset)
	}
	if err != nil {
		s.logger.Error("Failed to query session audit trail", "session_id", sessionID.String(), "error", err)
		return nil, 0, err
	}

	total, err := s.auditRepo.CountBySessionID(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetTransactionTrail returns the audit entries for one transaction
func (s *AuditServiceImpl) GetTransactionTrail(ctx context.Context, transactionID uuid.UUID, page, perPage int) ([]*audit.Entry, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.GetByTransactionID(ctx, transactionID, perPage, offset)
	if err != nil {
		s.logger.Error("Failed to query transaction audit trail", "transaction_id", transactionID.String(), "error", err)
		return nil, err
	}
	return entries, nil
}
