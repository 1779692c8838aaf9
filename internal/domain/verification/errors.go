package verification

import (
	"github.com/google/uuid"
	"github.com/verification-workflow-engine/internal/domain/shared"
)

// ErrTransactionNotFound indicates a missing verification transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "verification transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries a nil ID
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrAlreadyDecided indicates a second decision attempt on a transaction
// whose decision is terminal
type ErrAlreadyDecided struct {
	TransactionID uuid.UUID
	Decision      shared.Decision
}

func (e ErrAlreadyDecided) Error() string {
	return "transaction " + e.TransactionID.String() + " already decided: " + string(e.Decision)
}

// Is matches any ErrAlreadyDecided regardless of transaction
func (e ErrAlreadyDecided) Is(target error) bool {
	_, ok := target.(ErrAlreadyDecided)
	return ok
}

// ErrNotInSession indicates a transaction that belongs to a different session
// than the one named in the request
type ErrNotInSession struct {
	TransactionID uuid.UUID
	SessionID     uuid.UUID
}

func (e ErrNotInSession) Error() string {
	return "transaction " + e.TransactionID.String() + " does not belong to session " + e.SessionID.String()
}

// Is matches any ErrNotInSession
func (e ErrNotInSession) Is(target error) bool {
	_, ok := target.(ErrNotInSession)
	return ok
}
