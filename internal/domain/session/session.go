package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/verification-workflow-engine/internal/domain/shared"
)

// Status defines the lifecycle states of a verification session
type Status string

const (
	StatusNotStarted    Status = "NOT_STARTED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusPaused        Status = "PAUSED"
	StatusCompleted     Status = "COMPLETED"
	StatusAutoCompleted Status = "AUTO_COMPLETED"
	StatusExpired       Status = "EXPIRED"
)

// Session is the stateful review process over one weekly batch. Counters are
// derived fields mutated exclusively through the transition methods below,
// always under the caller's per-session lock.
type Session struct {
	ID                uuid.UUID  `json:"id"`
	BusinessID        uuid.UUID  `json:"business_id"`
	BatchID           uuid.UUID  `json:"batch_id"`
	Status            Status     `json:"status"`
	TotalTransactions int        `json:"total_transactions"`
	VerifiedCount     int        `json:"verified_count"`
	ApprovedCount     int        `json:"approved_count"`
	RejectedCount     int        `json:"rejected_count"`
	CurrentIndex      int        `json:"current_index"`
	AverageRiskScore  float64    `json:"average_risk_score"` // Informational only
	Deadline          time.Time  `json:"deadline"`           // Immutable after creation
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Version           int        `json:"version"` // For optimistic locking
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewSession creates a session for a freshly delivered batch
func NewSession(businessID, batchID uuid.UUID, totalTransactions int, averageRiskScore float64, deadline time.Time) (*Session, error) {
	if businessID == uuid.Nil || batchID == uuid.Nil {
		return nil, ErrMissingIdentity
	}
	if totalTransactions <= 0 {
		return nil, ErrEmptyBatch
	}
	if deadline.IsZero() {
		return nil, ErrMissingDeadline
	}

	now := time.Now()
	return &Session{
		ID:                uuid.New(),
		BusinessID:        businessID,
		BatchID:           batchID,
		Status:            StatusNotStarted,
		TotalTransactions: totalTransactions,
		AverageRiskScore:  averageRiskScore,
		Deadline:          deadline,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsTerminal reports whether the session can no longer be mutated
func (s *Session) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusAutoCompleted, StatusExpired:
		return true
	}
	return false
}

// IsExpired reports whether the deadline has passed at the given instant
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.Deadline)
}

// ApplyDecision advances the counters for one human decision at the given
// batch position. The first decision starts the session; the last one
// completes it. Decisions are accepted in any non-terminal state.
func (s *Session) ApplyDecision(decision shared.Decision, position int, now time.Time) error {
	if s.IsTerminal() {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "record_decision"}
	}
	if s.VerifiedCount >= s.TotalTransactions {
		return ErrCounterOverflow{SessionID: s.ID}
	}

	switch decision {
	case shared.DecisionApproved, shared.DecisionAutoApproved:
		s.ApprovedCount++
	case shared.DecisionRejected:
		s.RejectedCount++
	default:
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "record_decision"}
	}
	s.VerifiedCount++

	if s.Status == StatusNotStarted {
		s.Status = StatusInProgress
		startedAt := now
		s.StartedAt = &startedAt
	}
	if position >= s.CurrentIndex {
		s.CurrentIndex = position + 1
	}
	if s.VerifiedCount == s.TotalTransactions {
		s.Status = StatusCompleted
		completedAt := now
		s.CompletedAt = &completedAt
	}

	s.touch(now)
	return nil
}

// Pause suspends an in-progress session
func (s *Session) Pause(now time.Time) error {
	if s.Status != StatusInProgress {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "pause"}
	}
	s.Status = StatusPaused
	s.touch(now)
	return nil
}

// Resume returns a paused session to in-progress
func (s *Session) Resume(now time.Time) error {
	if s.Status != StatusPaused {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "resume"}
	}
	s.Status = StatusInProgress
	s.touch(now)
	return nil
}

// AutoComplete force-resolves the session after its deadline passed,
// accounting for autoApproved system decisions on the remaining transactions
func (s *Session) AutoComplete(autoApproved int, now time.Time) error {
	if s.IsTerminal() {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "auto_complete"}
	}
	if s.VerifiedCount+autoApproved != s.TotalTransactions {
		return ErrCounterOverflow{SessionID: s.ID}
	}

	s.ApprovedCount += autoApproved
	s.VerifiedCount += autoApproved
	if s.Status == StatusNotStarted {
		startedAt := now
		s.StartedAt = &startedAt
	}
	s.Status = StatusAutoCompleted
	completedAt := now
	s.CompletedAt = &completedAt
	s.touch(now)
	return nil
}

// FinalizeCompleted closes the bookkeeping for a session whose every
// transaction was already decided by a human before the sweep reached it
func (s *Session) FinalizeCompleted(now time.Time) error {
	if s.IsTerminal() {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "finalize"}
	}
	if s.VerifiedCount != s.TotalTransactions {
		return ErrCounterOverflow{SessionID: s.ID}
	}
	s.Status = StatusCompleted
	completedAt := now
	s.CompletedAt = &completedAt
	s.touch(now)
	return nil
}

// Expire discards a batch that was never reviewed. Only legal when zero
// transactions were decided; the batch's transactions stay untouched.
func (s *Session) Expire(now time.Time) error {
	if s.IsTerminal() {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "expire"}
	}
	if s.VerifiedCount != 0 {
		return ErrInvalidTransition{SessionID: s.ID, From: s.Status, Action: "expire"}
	}
	s.Status = StatusExpired
	completedAt := now
	s.CompletedAt = &completedAt
	s.touch(now)
	return nil
}

// PendingCount returns the number of transactions still awaiting a decision
func (s *Session) PendingCount() int {
	return s.TotalTransactions - s.VerifiedCount
}

func (s *Session) touch(now time.Time) {
	s.UpdatedAt = now
	s.Version++
}
