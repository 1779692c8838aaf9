package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines session persistence operations
type Repository interface {
	Create(ctx context.Context, sess *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetByBatchID returns nil, nil when no session exists for the batch
	GetByBatchID(ctx context.Context, batchID uuid.UUID) (*Session, error)

	// Update persists the session using optimistic locking on Version
	Update(ctx context.Context, sess *Session) error

	// LockForUpdate acquires the per-session row lock that serializes every
	// decision-mutating operation on the session
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetExpired returns non-terminal sessions whose deadline passed before now
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*Session, error)

	WithTx(tx pgx.Tx) Repository
}
