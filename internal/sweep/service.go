// Package sweep implements the deadline sweep: the periodic pass that finds
// sessions whose review deadline has passed and force-resolves them. Every
// pending transaction of an expired session is auto-approved, the session is
// closed, and the business is notified.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/panjf2000/ants/v2"

	"github.com/verification-workflow-engine/internal/config"
	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
	"github.com/verification-workflow-engine/internal/platform/messaging/producers"
)

// Service runs the deadline sweep
type Service interface {
	RunSweepOnce(ctx context.Context) (*Summary, error)
	Shutdown()
}

// TxBeginner abstracts pgxpool.Pool.Begin for testability
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type sweepService struct {
	beginner     TxBeginner
	sessions     session.Repository
	transactions verification.Repository
	auditRepo    audit.Repository
	notifier     producers.MessagePublisher
	pool         *ants.Pool
	logger       *slog.Logger

	batchSize        int
	expireUnreviewed bool

	// now is injectable so tests control the sweep's clock
	now func() time.Time
}

// NewService creates the sweep service with its own worker pool. Sessions are
// independent, so each one is resolved on its own pool worker.
func NewService(
	beginner TxBeginner,
	sessions session.Repository,
	transactions verification.Repository,
	auditRepo audit.Repository,
	notifier producers.MessagePublisher,
	sweepCfg *config.SweepConfig,
	engineCfg *config.EngineConfig,
	poolSize int,
	logger *slog.Logger,
) (Service, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep worker pool: %w", err)
	}

	return &sweepService{
		beginner:         beginner,
		sessions:         sessions,
		transactions:     transactions,
		auditRepo:        auditRepo,
		notifier:         notifier,
		pool:             pool,
		logger:           logger,
		batchSize:        sweepCfg.SessionBatchSize,
		expireUnreviewed: engineCfg.ExpireUnreviewedBatches,
		now:              time.Now,
	}, nil
}

// RunSweepOnce executes a single sweep pass. Each eligible session is resolved
// in its own database transaction; one session failing never aborts the rest.
// The returned summary covers every session the pass touched.
func (s *sweepService) RunSweepOnce(ctx context.Context) (*Summary, error) {
	now := s.now()
	summary := &Summary{StartedAt: now}

	expired, err := s.sessions.GetExpired(ctx, now, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	if len(expired) == 0 {
		summary.FinishedAt = s.now()
		return summary, nil
	}

	s.logger.Info("Sweep pass starting", "eligible_sessions", len(expired))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, sess := range expired {
		if ctx.Err() != nil {
			break // Stop claiming new sessions once the context is canceled
		}

		sessionID := sess.ID
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			result := s.processSession(ctx, sessionID, now)

			mu.Lock()
			summary.add(result)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("Failed to submit session to sweep pool", "session_id", sessionID.String(), "error", submitErr)
			mu.Lock()
			summary.add(SessionResult{
				SessionID: sessionID,
				Outcome:   shared.SweepOutcomeFailed,
				Error:     submitErr.Error(),
			})
			mu.Unlock()
		}
	}
	wg.Wait()

	summary.FinishedAt = s.now()
	s.logger.Info("Sweep pass finished",
		"processed", summary.ProcessedCount,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount,
		"auto_approved_transactions", summary.TotalAutoApproved,
	)
	return summary, nil
}

// processSession resolves one expired session inside its own transaction.
// The row lock plus the post-lock re-check make the resolution safe against
// concurrent decisions and overlapping sweep runs.
func (s *sweepService) processSession(ctx context.Context, sessionID uuid.UUID, now time.Time) (result SessionResult) {
	result = SessionResult{SessionID: sessionID}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		s.logger.Error("Failed to begin sweep transaction", "session_id", sessionID.String(), "error", err)
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p) // Re-panic
		} else if result.Outcome == shared.SweepOutcomeFailed || result.Outcome == shared.SweepOutcomeSkipped {
			if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
				s.logger.Error("Failed to rollback sweep transaction", "session_id", sessionID.String(), "error", rbErr)
			}
		}
	}()

	sessionRepo := s.sessions.WithTx(tx)
	txnRepo := s.transactions.WithTx(tx)

	locked, err := sessionRepo.LockForUpdate(ctx, sessionID)
	if err != nil {
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}
	result.BatchID = locked.BatchID
	result.BusinessID = locked.BusinessID

	// Re-check under the lock: another sweep run or the final human decision
	// may have resolved the session while we waited for the row
	if locked.IsTerminal() || !locked.IsExpired(now) {
		result.Outcome = shared.SweepOutcomeSkipped
		return result
	}

	pending, err := txnRepo.GetPending(ctx, sessionID)
	if err != nil {
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}

	var entries []*audit.Entry
	before := locked.Status

	switch {
	case len(pending) == 0 && locked.VerifiedCount == locked.TotalTransactions:
		// Fully reviewed but never finalized; close it as a normal completion
		if err = locked.FinalizeCompleted(now); err != nil {
			result.Outcome = shared.SweepOutcomeFailed
			result.Error = err.Error()
			return result
		}
		result.Outcome = shared.SweepOutcomeAlreadyCompleted
		entries = append(entries, s.sweepEntry(locked, before, shared.SweepOutcomeAlreadyCompleted, 0))

	case locked.VerifiedCount == 0 && s.expireUnreviewed:
		// Untouched batch and expiry is enabled: discard instead of approving
		if err = locked.Expire(now); err != nil {
			result.Outcome = shared.SweepOutcomeFailed
			result.Error = err.Error()
			return result
		}
		result.Outcome = shared.SweepOutcomeBatchDiscarded
		entries = append(entries, audit.NewEntry(locked.ID, audit.EventSessionExpired, shared.ActorTypeSystem,
			string(before), string(locked.Status)))

	default:
		approved, approveErr := txnRepo.AutoApprovePending(ctx, sessionID, now)
		if approveErr != nil {
			result.Outcome = shared.SweepOutcomeFailed
			result.Error = approveErr.Error()
			return result
		}
		if err = locked.AutoComplete(int(approved), now); err != nil {
			result.Outcome = shared.SweepOutcomeFailed
			result.Error = err.Error()
			return result
		}
		result.Outcome = shared.SweepOutcomeDeadlineExpired
		result.AutoApproved = int(approved)

		for _, txn := range pending {
			entries = append(entries, audit.NewTransactionEntry(locked.ID, txn.ID,
				audit.EventTransactionAutoApproved, shared.ActorTypeSystem,
				string(shared.DecisionPending), string(shared.DecisionAutoApproved)))
		}
		entries = append(entries, s.sweepEntry(locked, before, shared.SweepOutcomeDeadlineExpired, int(approved)))
	}

	if err = sessionRepo.Update(ctx, locked); err != nil {
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}

	// The audit write happens before the commit: if the trail cannot be
	// recorded the whole resolution is rolled back
	if err = s.auditRepo.AppendAll(ctx, entries); err != nil {
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error("Failed to commit sweep transaction", "session_id", sessionID.String(), "error", err)
		result.Outcome = shared.SweepOutcomeFailed
		result.Error = err.Error()
		return result
	}

	s.logger.Info("Sweep resolved session",
		"session_id", locked.ID.String(),
		"batch_id", locked.BatchID.String(),
		"outcome", string(result.Outcome),
		"auto_approved", result.AutoApproved,
	)

	// Notification is fire-and-forget: the resolution is already committed,
	// a failed publish is logged and never retried
	result.NotificationSent = s.notify(ctx, locked, result.Outcome, result.AutoApproved, now)

	return result
}

func (s *sweepService) sweepEntry(sess *session.Session, before session.Status, outcome shared.SweepOutcome, autoApproved int) *audit.Entry {
	return audit.NewEntry(sess.ID, audit.EventSweepCompleted, shared.ActorTypeSystem,
		string(before), string(sess.Status)).
		WithMetadata("outcome", string(outcome)).
		WithMetadata("auto_approved_count", fmt.Sprintf("%d", autoApproved))
}

func (s *sweepService) notify(ctx context.Context, sess *session.Session, outcome shared.SweepOutcome, autoApproved int, now time.Time) bool {
	notification := &shared.SweepNotification{
		SessionID:         sess.ID,
		BatchID:           sess.BatchID,
		BusinessID:        sess.BusinessID,
		Outcome:           outcome,
		AutoApprovedCount: autoApproved,
		CompletedAt:       now,
	}

	if err := s.notifier.Publish(ctx, sess.ID.String(), notification); err != nil {
		s.logger.Error("Failed to publish sweep notification",
			"session_id", sess.ID.String(),
			"outcome", string(outcome),
			"error", err,
		)
		return false
	}
	return true
}

// Shutdown releases the worker pool
func (s *sweepService) Shutdown() {
	s.logger.Info("Shutting down sweep worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}
