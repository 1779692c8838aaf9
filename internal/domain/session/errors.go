package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Creation validation errors
var (
	ErrMissingIdentity = errors.New("business and batch identifiers are required")
	ErrEmptyBatch      = errors.New("batch must contain at least one transaction")
	ErrMissingDeadline = errors.New("session deadline is required")
)

// ErrSessionNotFound indicates a missing session
type ErrSessionNotFound struct {
	SessionID uuid.UUID
}

func (e ErrSessionNotFound) Error() string {
	return "verification session not found: " + e.SessionID.String()
}

// Is matches any ErrSessionNotFound when the target carries a nil ID
func (e ErrSessionNotFound) Is(target error) bool {
	t, ok := target.(ErrSessionNotFound)
	if !ok {
		return false
	}
	if t.SessionID == uuid.Nil {
		return true
	}
	return e.SessionID == t.SessionID
}

// ErrInvalidTransition indicates an action that is illegal in the session's
// current state, including any mutation of a terminal session
type ErrInvalidTransition struct {
	SessionID uuid.UUID
	From      Status
	Action    string
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s session %s in state %s", e.Action, e.SessionID, e.From)
}

// Is matches any ErrInvalidTransition regardless of session or action
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}

// ErrCounterOverflow indicates the verified counter would exceed the batch
// total, which means session and transaction state have diverged
type ErrCounterOverflow struct {
	SessionID uuid.UUID
}

func (e ErrCounterOverflow) Error() string {
	return "verified count would exceed total transactions for session: " + e.SessionID.String()
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	SessionID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for session: " + e.SessionID.String()
}

// ErrDuplicateBatch indicates a batch that already has a session
type ErrDuplicateBatch struct {
	BatchID uuid.UUID
}

func (e ErrDuplicateBatch) Error() string {
	return "session already exists for batch: " + e.BatchID.String()
}
