package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verification-workflow-engine/internal/config"
	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
)

// SessionServiceImpl implements the SessionService interface
type SessionServiceImpl struct {
	beginner     TxBeginner
	sessions     session.Repository
	transactions verification.Repository
	auditRepo    audit.Repository
	logger       *slog.Logger

	idempotencyWindow time.Duration
	storageTimeout    time.Duration

	// now is injectable so tests control the clock
	now func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	logger *slog.Logger,
	beginner TxBeginner,
	sessions session.Repository,
	transactions verification.Repository,
	auditRepo audit.Repository,
	engineCfg *config.EngineConfig,
) SessionService {
	return &SessionServiceImpl{
		beginner:          beginner,
		sessions:          sessions,
		transactions:      transactions,
		auditRepo:         auditRepo,
		logger:            logger,
		idempotencyWindow: engineCfg.IdempotencyWindow,
		storageTimeout:    engineCfg.StorageTimeout,
		now:               time.Now,
	}
}

// GetSession retrieves a session snapshot by its ID
func (s *SessionServiceImpl) GetSession(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	return s.sessions.GetByID(ctx, sessionID)
}

// GetPendingTransactions returns the session and its pending transactions in
// stable batch order
func (s *SessionServiceImpl) GetPendingTransactions(ctx context.Context, sessionID uuid.UUID) (*session.Session, []*verification.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	pending, err := s.transactions.GetPending(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	return sess, pending, nil
}

// RecordDecision applies one human decision under the session's row lock.
// Transaction record, session counters, and the audit entry commit together;
// an audit write failure rolls back the whole decision.
func (s *SessionServiceImpl) RecordDecision(ctx context.Context, cmd RecordDecisionCommand) (*session.Session, *verification.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	now := s.now()

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit returns ErrTxClosed and is a no-op
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("Failed to rollback decision transaction",
				"session_id", cmd.SessionID.String(), "error", rbErr)
		}
	}()

	sessionRepo := s.sessions.WithTx(tx)
	txnRepo := s.transactions.WithTx(tx)

	// The row lock serializes every decision-mutating operation on this session
	sess, err := sessionRepo.LockForUpdate(ctx, cmd.SessionID)
	if err != nil {
		return nil, nil, err
	}

	txn, err := txnRepo.GetByID(ctx, cmd.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	if txn.SessionID != cmd.SessionID {
		return nil, nil, verification.ErrNotInSession{TransactionID: txn.ID, SessionID: cmd.SessionID}
	}

	// A retried identical request is a no-op returning the applied state,
	// checked before any state-based rejection so flaky-network retries of the
	// final decision don't surface InvalidState
	if txn.IsIdenticalDecision(cmd.Decision, cmd.Actor, now, s.idempotencyWindow) {
		s.logger.Info("Identical decision retry treated as no-op",
			"session_id", cmd.SessionID.String(),
			"transaction_id", cmd.TransactionID.String(),
			"decision", string(cmd.Decision),
		)
		return sess, txn, nil
	}

	if sess.IsTerminal() {
		return nil, nil, session.ErrInvalidTransition{SessionID: sess.ID, From: sess.Status, Action: "record_decision"}
	}

	if err = txn.Decide(cmd.Decision, cmd.RejectionReason, cmd.BusinessNote, cmd.Actor, now); err != nil {
		return nil, nil, err
	}
	if err = txnRepo.ApplyDecision(ctx, txn); err != nil {
		return nil, nil, err
	}

	if err = sess.ApplyDecision(cmd.Decision, txn.Position, now); err != nil {
		return nil, nil, err
	}
	if err = sessionRepo.Update(ctx, sess); err != nil {
		return nil, nil, err
	}

	entry := audit.NewTransactionEntry(sess.ID, txn.ID, audit.EventDecisionRecorded,
		shared.ActorTypeBusinessUser, string(shared.DecisionPending), string(cmd.Decision))
	entry.Actor = cmd.Actor
	entry.CorrelationID = cmd.CorrelationID
	if cmd.Decision == shared.DecisionRejected {
		entry.WithMetadata("rejection_reason", string(cmd.RejectionReason))
		if cmd.BusinessNote != "" {
			entry.WithMetadata("business_note", cmd.BusinessNote)
		}
	}

	// The audit write happens before the commit: if the trail cannot be
	// recorded the decision is rolled back
	if err = s.auditRepo.Append(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit decision: %w", err)
	}

	s.logger.Info("Decision recorded",
		"session_id", sess.ID.String(),
		"transaction_id", txn.ID.String(),
		"decision", string(cmd.Decision),
		"verified_count", sess.VerifiedCount,
		"total_transactions", sess.TotalTransactions,
		"session_status", string(sess.Status),
	)

	return sess, txn, nil
}

// Pause suspends an in-progress session
func (s *SessionServiceImpl) Pause(ctx context.Context, sessionID uuid.UUID, actor, correlationID string) (*session.Session, error) {
	return s.transition(ctx, sessionID, actor, correlationID, audit.EventSessionPaused,
		func(sess *session.Session, now time.Time) error { return sess.Pause(now) })
}

// Resume returns a paused session to in-progress
func (s *SessionServiceImpl) Resume(ctx context.Context, sessionID uuid.UUID, actor, correlationID string) (*session.Session, error) {
	return s.transition(ctx, sessionID, actor, correlationID, audit.EventSessionResumed,
		func(sess *session.Session, now time.Time) error { return sess.Resume(now) })
}

// transition applies a pause/resume state change under the session lock
func (s *SessionServiceImpl) transition(
	ctx context.Context,
	sessionID uuid.UUID,
	actor, correlationID string,
	eventType audit.EventType,
	apply func(*session.Session, time.Time) error,
) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	now := s.now()

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("Failed to rollback transition transaction",
				"session_id", sessionID.String(), "error", rbErr)
		}
	}()

	sessionRepo := s.sessions.WithTx(tx)

	sess, err := sessionRepo.LockForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	before := sess.Status
	if err = apply(sess, now); err != nil {
		return nil, err
	}

	if err = sessionRepo.Update(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(sess.ID, eventType, shared.ActorTypeBusinessUser,
		string(before), string(sess.Status))
	entry.Actor = actor
	entry.CorrelationID = correlationID
	if err = s.auditRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	s.logger.Info("Session transitioned",
		"session_id", sess.ID.String(),
		"event", string(eventType),
		"from", string(before),
		"to", string(sess.Status),
	)

	return sess, nil
}
