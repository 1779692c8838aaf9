package verification

import (
	"time"

	"github.com/google/uuid"
	"github.com/verification-workflow-engine/internal/domain/shared"
)

// Transaction is one customer transaction under review within a session.
// A decision is terminal: once DecidedAt is set the record never changes.
type Transaction struct {
	ID                    uuid.UUID              `json:"id"`
	SessionID             uuid.UUID              `json:"session_id"`
	ExternalTransactionID string                 `json:"external_transaction_id"`
	Amount                int64                  `json:"amount"` // Stored in cents/minor units
	StoreReference        string                 `json:"store_reference,omitempty"`
	RiskScore             float64                `json:"risk_score"`
	Position              int                    `json:"position"` // Order within the batch
	Decision              shared.Decision        `json:"decision"`
	RejectionReason       shared.RejectionReason `json:"rejection_reason,omitempty"`
	BusinessNote          string                 `json:"business_note,omitempty"`
	DecidedAt             *time.Time             `json:"decided_at,omitempty"`
	DecidedBy             string                 `json:"decided_by,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
}

// NewTransaction builds a pending transaction from batch data
func NewTransaction(sessionID uuid.UUID, raw shared.RawTransaction, position int) *Transaction {
	return &Transaction{
		ID:                    uuid.New(),
		SessionID:             sessionID,
		ExternalTransactionID: raw.ExternalTransactionID,
		Amount:                raw.Amount,
		StoreReference:        raw.StoreReference,
		RiskScore:             raw.RiskScore,
		Position:              position,
		Decision:              shared.DecisionPending,
		CreatedAt:             time.Now(),
	}
}

// ValidateDecision checks a human decision payload against the closed
// reason/note rules without mutating anything
func ValidateDecision(decision shared.Decision, reason shared.RejectionReason, note string) error {
	switch decision {
	case shared.DecisionApproved:
		return nil
	case shared.DecisionRejected:
		if reason == "" {
			return shared.ErrRejectionReasonRequired
		}
		if !reason.Valid() {
			return shared.ErrUnknownRejectionReason
		}
		if reason == shared.ReasonOther && note == "" {
			return shared.ErrBusinessNoteRequired
		}
		return nil
	default:
		return shared.ErrUnknownDecision
	}
}

// Decide records a human decision. The transaction must still be pending.
func (t *Transaction) Decide(decision shared.Decision, reason shared.RejectionReason, note string, actor string, now time.Time) error {
	if t.Decision != shared.DecisionPending {
		return ErrAlreadyDecided{TransactionID: t.ID, Decision: t.Decision}
	}
	if err := ValidateDecision(decision, reason, note); err != nil {
		return err
	}

	t.Decision = decision
	if decision == shared.DecisionRejected {
		t.RejectionReason = reason
		t.BusinessNote = note
	}
	decidedAt := now
	t.DecidedAt = &decidedAt
	t.DecidedBy = actor
	return nil
}

// AutoApprove records the system decision applied by the sweep
func (t *Transaction) AutoApprove(now time.Time) error {
	if t.Decision != shared.DecisionPending {
		return ErrAlreadyDecided{TransactionID: t.ID, Decision: t.Decision}
	}
	t.Decision = shared.DecisionAutoApproved
	t.BusinessNote = shared.AutoApprovalNote
	decidedAt := now
	t.DecidedAt = &decidedAt
	t.DecidedBy = shared.SystemActor
	return nil
}

// IsIdenticalDecision reports whether a retried request matches the decision
// already applied to this transaction closely enough to be treated as a
// client retry: same decision, same actor, decided within the window.
func (t *Transaction) IsIdenticalDecision(decision shared.Decision, actor string, now time.Time, window time.Duration) bool {
	if t.Decision == shared.DecisionPending || t.DecidedAt == nil {
		return false
	}
	if t.Decision != decision || t.DecidedBy != actor {
		return false
	}
	return now.Sub(*t.DecidedAt) <= window
}
