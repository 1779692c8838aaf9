package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verification-workflow-engine/internal/config"
	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
)

// TxBeginner abstracts pgxpool.Pool.Begin for testability
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SessionCreator turns a delivered batch into a review session
type SessionCreator interface {
	// CreateFromBatch creates the session, its transaction rows in batch
	// order, and the session_created audit entry atomically. A batch that
	// already has a session is a no-op.
	CreateFromBatch(ctx context.Context, event *shared.BatchAvailableEvent) error
}

type sessionCreator struct {
	beginner     TxBeginner
	sessions     session.Repository
	transactions verification.Repository
	auditRepo    audit.Repository
	logger       *slog.Logger

	storageTimeout time.Duration
}

// NewSessionCreator creates the batch-to-session component
func NewSessionCreator(
	logger *slog.Logger,
	beginner TxBeginner,
	sessions session.Repository,
	transactions verification.Repository,
	auditRepo audit.Repository,
	engineCfg *config.EngineConfig,
) SessionCreator {
	return &sessionCreator{
		beginner:       beginner,
		sessions:       sessions,
		transactions:   transactions,
		auditRepo:      auditRepo,
		logger:         logger,
		storageTimeout: engineCfg.StorageTimeout,
	}
}

func (c *sessionCreator) CreateFromBatch(ctx context.Context, event *shared.BatchAvailableEvent) error {
	ctx, cancel := context.WithTimeout(ctx, c.storageTimeout)
	defer cancel()

	// Cheap dedupe before doing any work; the unique batch_id constraint
	// still catches the race between two consumers of the same event
	existing, err := c.sessions.GetByBatchID(ctx, event.BatchID)
	if err != nil {
		return fmt.Errorf("failed to check for existing session: %w", err)
	}
	if existing != nil {
		c.logger.Info("Session already exists for batch, skipping",
			"batch_id", event.BatchID.String(),
			"session_id", existing.ID.String(),
		)
		return nil
	}

	sess, err := session.NewSession(
		event.BusinessID,
		event.BatchID,
		len(event.Transactions),
		averageRiskScore(event.Transactions),
		event.Deadline,
	)
	if err != nil {
		return fmt.Errorf("invalid batch event: %w", err)
	}

	transactions := make([]*verification.Transaction, len(event.Transactions))
	for i, raw := range event.Transactions {
		transactions[i] = verification.NewTransaction(sess.ID, raw, i)
	}

	tx, err := c.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			c.logger.Error("Failed to rollback session creation",
				"batch_id", event.BatchID.String(), "error", rbErr)
		}
	}()

	sessionRepo := c.sessions.WithTx(tx)
	txnRepo := c.transactions.WithTx(tx)

	if err = sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, session.ErrDuplicateBatch{BatchID: event.BatchID}) {
			c.logger.Info("Lost session creation race for batch, skipping",
				"batch_id", event.BatchID.String())
			return nil
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err = txnRepo.CreateBatch(ctx, transactions); err != nil {
		return fmt.Errorf("failed to create session transactions: %w", err)
	}

	entry := audit.NewEntry(sess.ID, audit.EventSessionCreated, shared.ActorTypeSystem,
		"", string(sess.Status)).
		WithMetadata("batch_id", event.BatchID.String()).
		WithMetadata("total_transactions", fmt.Sprintf("%d", sess.TotalTransactions))
	entry.CorrelationID = event.CorrelationID

	// Audit before commit so an unrecorded session never becomes visible
	if err = c.auditRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session creation: %w", err)
	}

	c.logger.Info("Session created for batch",
		"session_id", sess.ID.String(),
		"batch_id", event.BatchID.String(),
		"business_id", event.BusinessID.String(),
		"total_transactions", sess.TotalTransactions,
		"deadline", event.Deadline,
	)
	return nil
}

func averageRiskScore(transactions []shared.RawTransaction) float64 {
	if len(transactions) == 0 {
		return 0
	}
	var sum float64
	for _, txn := range transactions {
		sum += txn.RiskScore
	}
	return sum / float64(len(transactions))
}
