package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages the append-only audit trail. Append and AppendAll are
// the only mutations; there is no update or delete. A failed append must
// fail the caller's operation: an undocumented state transition is invalid.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	AppendAll(ctx context.Context, entries []*Entry) error

	GetBySessionID(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Entry, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*Entry, error)
	GetByTimeRange(ctx context.Context, sessionID uuid.UUID, startTime, endTime time.Time, limit, offset int) ([]*Entry, error)
	CountBySessionID(ctx context.Context, sessionID uuid.UUID) (int64, error)
}
