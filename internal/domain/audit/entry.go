package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/verification-workflow-engine/internal/domain/shared"
)

// EventType names the state transitions and decisions the engine records
type EventType string

const (
	EventSessionCreated          EventType = "session_created"
	EventDecisionRecorded        EventType = "decision_recorded"
	EventSessionPaused           EventType = "session_paused"
	EventSessionResumed          EventType = "session_resumed"
	EventTransactionAutoApproved EventType = "transaction_auto_approved"
	EventSweepCompleted          EventType = "sweep_completed"
	EventSessionExpired          EventType = "session_expired"
)

// Entry is one append-only audit record. Entries are never mutated or
// deleted; every state change in the engine produces exactly one.
type Entry struct {
	ID            uuid.UUID         `json:"id" bson:"entry_id"`
	SessionID     uuid.UUID         `json:"session_id" bson:"session_id"`
	TransactionID *uuid.UUID        `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	EventType     EventType         `json:"event_type" bson:"event_type"`
	ActorType     shared.ActorType  `json:"actor_type" bson:"actor_type"`
	Actor         string            `json:"actor,omitempty" bson:"actor,omitempty"`
	BeforeState   string            `json:"before_state" bson:"before_state"`
	AfterState    string            `json:"after_state" bson:"after_state"`
	Timestamp     time.Time         `json:"timestamp" bson:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// NewEntry builds a session-level audit record
func NewEntry(sessionID uuid.UUID, eventType EventType, actorType shared.ActorType, before, after string) *Entry {
	return &Entry{
		ID:          uuid.New(),
		SessionID:   sessionID,
		EventType:   eventType,
		ActorType:   actorType,
		BeforeState: before,
		AfterState:  after,
		Timestamp:   time.Now().UTC(),
	}
}

// NewTransactionEntry builds an audit record scoped to one transaction
func NewTransactionEntry(sessionID, transactionID uuid.UUID, eventType EventType, actorType shared.ActorType, before, after string) *Entry {
	entry := NewEntry(sessionID, eventType, actorType, before, after)
	txnID := transactionID
	entry.TransactionID = &txnID
	return entry
}

// WithMetadata attaches a metadata key, allocating the map on first use
func (e *Entry) WithMetadata(key, value string) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}
