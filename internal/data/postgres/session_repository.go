// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the verification workflow engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/platform/persistence"
)

const sessionColumns = `id, business_id, batch_id, status, total_transactions, verified_count,
		approved_count, rejected_count, current_index, average_risk_score, deadline,
		started_at, completed_at, version, created_at, updated_at`

// SessionRepository implements the session.Repository interface for PostgreSQL
type SessionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewSessionRepository creates a new PostgreSQL session repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewSessionRepository(logger *slog.Logger, db *persistence.PostgresDB) session.Repository {
	return &SessionRepository{
		querier: db.Pool(), // Initialize with the pool
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls. The returned repository will use the provided
// transaction for all database operations.
func (r *SessionRepository) WithTx(tx pgx.Tx) session.Repository {
	return &SessionRepository{
		querier: tx, // Use the transaction
		logger:  r.logger,
	}
}

// Create stores a new session in the database. Each batch gets at most one
// session; inserting a second one for the same batch returns ErrDuplicateBatch.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO verification_sessions (id, business_id, batch_id, status, total_transactions,
			verified_count, approved_count, rejected_count, current_index, average_risk_score,
			deadline, started_at, completed_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		sess.ID,
		sess.BusinessID,
		sess.BatchID,
		sess.Status,
		sess.TotalTransactions,
		sess.VerifiedCount,
		sess.ApprovedCount,
		sess.RejectedCount,
		sess.CurrentIndex,
		sess.AverageRiskScore,
		sess.Deadline,
		sess.StartedAt,
		sess.CompletedAt,
		sess.Version,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return session.ErrDuplicateBatch{BatchID: sess.BatchID}
		}
		r.logger.Error("Failed to create session", "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_sessions
		WHERE id = $1
	`, sessionColumns)

	sess, err := r.scanSession(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound{SessionID: id}
		}
		r.logger.Error("Failed to get session", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return sess, nil
}

// GetByBatchID retrieves the session created for a batch
func (r *SessionRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) (*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_sessions
		WHERE batch_id = $1
	`, sessionColumns)

	sess, err := r.scanSession(r.querier.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil when no session exists for the batch
		}
		r.logger.Error("Failed to get session by batch ID", "batchID", batchID.String(), "error", err)
		return nil, fmt.Errorf("failed to get session by batch ID: %w", err)
	}

	return sess, nil
}

// Update updates an existing session in the database
func (r *SessionRepository) Update(ctx context.Context, sess *session.Session) error {
	query := `
		UPDATE verification_sessions
		SET status = $1, verified_count = $2, approved_count = $3, rejected_count = $4,
			current_index = $5, started_at = $6, completed_at = $7, version = $8, updated_at = $9
		WHERE id = $10 AND version = $11
	`

	result, err := r.querier.Exec(ctx, query,
		sess.Status,
		sess.VerifiedCount,
		sess.ApprovedCount,
		sess.RejectedCount,
		sess.CurrentIndex,
		sess.StartedAt,
		sess.CompletedAt,
		sess.Version,
		sess.UpdatedAt,
		sess.ID,
		sess.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update session", "id", sess.ID.String(), "error", err)
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return session.ErrConcurrentModification{SessionID: sess.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the session and returns its current state.
// This should be used within a transaction when strong consistency is required.
func (r *SessionRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionColumns)

	sess, err := r.scanSession(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound{SessionID: id}
		}
		r.logger.Error("Failed to lock session for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock session for update: %w", err)
	}

	return sess, nil
}

// GetExpired returns non-terminal sessions whose deadline passed before now,
// oldest deadline first. Callers re-check each session under LockForUpdate
// before acting on it.
func (r *SessionRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_sessions
		WHERE status NOT IN ('COMPLETED', 'AUTO_COMPLETED', 'EXPIRED')
			AND deadline < $1
		ORDER BY deadline ASC
		LIMIT $2
	`, sessionColumns)

	rows, err := r.querier.Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to get expired sessions", "error", err)
		return nil, fmt.Errorf("failed to get expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired sessions: %w", err)
	}

	return sessions, nil
}

// scanSession reads one session row in sessionColumns order
func (r *SessionRepository) scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	err := row.Scan(
		&sess.ID,
		&sess.BusinessID,
		&sess.BatchID,
		&sess.Status,
		&sess.TotalTransactions,
		&sess.VerifiedCount,
		&sess.ApprovedCount,
		&sess.RejectedCount,
		&sess.CurrentIndex,
		&sess.AverageRiskScore,
		&sess.Deadline,
		&sess.StartedAt,
		&sess.CompletedAt,
		&sess.Version,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
