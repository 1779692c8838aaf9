package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
	"github.com/verification-workflow-engine/internal/platform/persistence"
)

const transactionColumns = `id, session_id, external_transaction_id, amount, store_reference,
		risk_score, position, decision, rejection_reason, business_note, decided_at, decided_by, created_at`

// TransactionRepository implements the verification.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) verification.Repository {
	return &TransactionRepository{
		querier: db.Pool(), // Initialize with the pool
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls
func (r *TransactionRepository) WithTx(tx pgx.Tx) verification.Repository {
	return &TransactionRepository{
		querier: tx, // Use the transaction
		logger:  r.logger,
	}
}

// CreateBatch inserts the ordered transactions of a new session
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*verification.Transaction) error {
	query := `
		INSERT INTO verification_transactions (id, session_id, external_transaction_id, amount,
			store_reference, risk_score, position, decision, rejection_reason, business_note,
			decided_at, decided_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	// Inserted row by row inside the caller's transaction; batches are
	// bounded (10-500 transactions) so a single round trip per row is fine
	for _, txn := range txns {
		_, err := r.querier.Exec(ctx, query,
			txn.ID,
			txn.SessionID,
			txn.ExternalTransactionID,
			txn.Amount,
			txn.StoreReference,
			txn.RiskScore,
			txn.Position,
			txn.Decision,
			txn.RejectionReason,
			txn.BusinessNote,
			txn.DecidedAt,
			txn.DecidedBy,
			txn.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create transaction batch", "position", txn.Position, "error", err)
			return fmt.Errorf("failed to create transaction batch: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*verification.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_transactions
		WHERE id = $1
	`, transactionColumns)

	txn, err := r.scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, verification.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetPending returns the undecided transactions of a session in batch order
func (r *TransactionRepository) GetPending(ctx context.Context, sessionID uuid.UUID) ([]*verification.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_transactions
		WHERE session_id = $1 AND decision = $2
		ORDER BY position ASC
	`, transactionColumns)

	rows, err := r.querier.Query(ctx, query, sessionID, shared.DecisionPending)
	if err != nil {
		r.logger.Error("Failed to get pending transactions", "sessionID", sessionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer rows.Close()

	var txns []*verification.Transaction
	for rows.Next() {
		txn, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending transactions: %w", err)
	}

	return txns, nil
}

// ApplyDecision persists a decided transaction. The update is guarded on the
// row still being pending, so a lost race surfaces as ErrAlreadyDecided
// instead of silently overwriting the first decision.
func (r *TransactionRepository) ApplyDecision(ctx context.Context, txn *verification.Transaction) error {
	query := `
		UPDATE verification_transactions
		SET decision = $1, rejection_reason = $2, business_note = $3, decided_at = $4, decided_by = $5
		WHERE id = $6 AND decision = $7
	`

	result, err := r.querier.Exec(ctx, query,
		txn.Decision,
		txn.RejectionReason,
		txn.BusinessNote,
		txn.DecidedAt,
		txn.DecidedBy,
		txn.ID,
		shared.DecisionPending,
	)
	if err != nil {
		r.logger.Error("Failed to apply decision", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to apply decision: %w", err)
	}

	if result.RowsAffected() == 0 {
		return verification.ErrAlreadyDecided{TransactionID: txn.ID}
	}

	return nil
}

// AutoApprovePending system-approves every pending transaction of a session
// in a single statement and returns the number of rows affected
func (r *TransactionRepository) AutoApprovePending(ctx context.Context, sessionID uuid.UUID, decidedAt time.Time) (int64, error) {
	query := `
		UPDATE verification_transactions
		SET decision = $1, business_note = $2, decided_at = $3, decided_by = $4
		WHERE session_id = $5 AND decision = $6
	`

	result, err := r.querier.Exec(ctx, query,
		shared.DecisionAutoApproved,
		shared.AutoApprovalNote,
		decidedAt,
		shared.SystemActor,
		sessionID,
		shared.DecisionPending,
	)
	if err != nil {
		r.logger.Error("Failed to auto-approve pending transactions", "sessionID", sessionID.String(), "error", err)
		return 0, fmt.Errorf("failed to auto-approve pending transactions: %w", err)
	}

	return result.RowsAffected(), nil
}

// scanTransaction reads one transaction row in transactionColumns order
func (r *TransactionRepository) scanTransaction(row pgx.Row) (*verification.Transaction, error) {
	var txn verification.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.SessionID,
		&txn.ExternalTransactionID,
		&txn.Amount,
		&txn.StoreReference,
		&txn.RiskScore,
		&txn.Position,
		&txn.Decision,
		&txn.RejectionReason,
		&txn.BusinessNote,
		&txn.DecidedAt,
		&txn.DecidedBy,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
