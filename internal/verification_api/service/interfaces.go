package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
)

// TxBeginner abstracts pgxpool.Pool.Begin for testability
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RecordDecisionCommand carries one human decision on one transaction
type RecordDecisionCommand struct {
	SessionID       uuid.UUID
	TransactionID   uuid.UUID
	Decision        shared.Decision
	RejectionReason shared.RejectionReason
	BusinessNote    string
	Actor           string
	CorrelationID   string
}

// SessionService defines the engine operations exposed to the API layer
type SessionService interface {
	// GetSession retrieves a session snapshot by its ID
	// Returns ErrSessionNotFound if the session doesn't exist
	GetSession(ctx context.Context, sessionID uuid.UUID) (*session.Session, error)

	// GetPendingTransactions returns the session together with its still-pending
	// transactions in stable batch order
	GetPendingTransactions(ctx context.Context, sessionID uuid.UUID) (*session.Session, []*verification.Transaction, error)

	// RecordDecision applies one human decision atomically: transaction record,
	// session counters, and audit entry all commit or none do.
	// A retried identical decision is a no-op returning the already-applied state.
	RecordDecision(ctx context.Context, cmd RecordDecisionCommand) (*session.Session, *verification.Transaction, error)

	// Pause suspends an in-progress session
	Pause(ctx context.Context, sessionID uuid.UUID, actor, correlationID string) (*session.Session, error)

	// Resume returns a paused session to in-progress
	Resume(ctx context.Context, sessionID uuid.UUID, actor, correlationID string) (*session.Session, error)
}

// AuditService exposes the append-only audit trail for compliance review
type AuditService interface {
	// GetSessionTrail returns a session's audit entries in chronological order,
	// optionally restricted to a time range
	GetSessionTrail(ctx context.Context, sessionID uuid.UUID, from, to *time.Time, page, perPage int) ([]*audit.Entry, int64, error)

	// GetTransactionTrail returns the audit entries for one transaction
	GetTransactionTrail(ctx context.Context, transactionID uuid.UUID, page, perPage int) ([]*audit.Entry, error)
}
