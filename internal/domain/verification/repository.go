package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines transaction persistence operations within a session
type Repository interface {
	// CreateBatch inserts the ordered transactions of a new session
	CreateBatch(ctx context.Context, txns []*Transaction) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetPending returns the undecided transactions of a session in stable
	// batch order
	GetPending(ctx context.Context, sessionID uuid.UUID) ([]*Transaction, error)

	// ApplyDecision persists a decided transaction. The update is guarded on
	// decision = PENDING; ErrAlreadyDecided is returned when another writer
	// decided the transaction first.
	ApplyDecision(ctx context.Context, txn *Transaction) error

	// AutoApprovePending system-approves every pending transaction of a
	// session and returns the number of rows affected
	AutoApprovePending(ctx context.Context, sessionID uuid.UUID, decidedAt time.Time) (int64, error)

	WithTx(tx pgx.Tx) Repository
}
