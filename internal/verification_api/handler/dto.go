package handler

import (
	"time"

	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/deadline"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/verification"
)

// RecordDecisionRequest represents a request to decide one transaction
type RecordDecisionRequest struct {
	Decision        string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	BusinessNote    string `json:"business_note,omitempty"`
	DecidedBy       string `json:"decided_by" binding:"required"`
}

// SessionActionRequest represents a pause/resume request
type SessionActionRequest struct {
	RequestedBy string `json:"requested_by" binding:"required"`
}

// SessionResponse represents a verification session in API responses
type SessionResponse struct {
	ID                string                  `json:"id"`
	BusinessID        string                  `json:"business_id"`
	BatchID           string                  `json:"batch_id"`
	Status            string                  `json:"status"`
	TotalTransactions int                     `json:"total_transactions"`
	VerifiedCount     int                     `json:"verified_count"`
	ApprovedCount     int                     `json:"approved_count"`
	RejectedCount     int                     `json:"rejected_count"`
	PendingCount      int                     `json:"pending_count"`
	CurrentIndex      int                     `json:"current_index"`
	AverageRiskScore  float64                 `json:"average_risk_score"`
	Deadline          string                  `json:"deadline"`
	DeadlineStatus    deadline.Classification `json:"deadline_status"`
	StartedAt         string                  `json:"started_at,omitempty"`
	CompletedAt       string                  `json:"completed_at,omitempty"`
	CreatedAt         string                  `json:"created_at"`
	UpdatedAt         string                  `json:"updated_at"`
}

// TransactionResponse represents a verification transaction in API responses
type TransactionResponse struct {
	ID                    string  `json:"id"`
	SessionID             string  `json:"session_id"`
	ExternalTransactionID string  `json:"external_transaction_id"`
	Amount                int64   `json:"amount"`
	StoreReference        string  `json:"store_reference,omitempty"`
	RiskScore             float64 `json:"risk_score"`
	Position              int     `json:"position"`
	Decision              string  `json:"decision"`
	RejectionReason       string  `json:"rejection_reason,omitempty"`
	BusinessNote          string  `json:"business_note,omitempty"`
	DecidedAt             string  `json:"decided_at,omitempty"`
	DecidedBy             string  `json:"decided_by,omitempty"`
}

// DecisionResponse pairs the decided transaction with the session progress
type DecisionResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Session     SessionResponse     `json:"session"`
}

// PendingTransactionsResponse is the review queue in stable batch order
type PendingTransactionsResponse struct {
	Session      SessionResponse       `json:"session"`
	Transactions []TransactionResponse `json:"transactions"`
}

// AuditEntryResponse represents an audit record in API responses
type AuditEntryResponse struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	TransactionID string            `json:"transaction_id,omitempty"`
	EventType     string            `json:"event_type"`
	ActorType     string            `json:"actor_type"`
	Actor         string            `json:"actor,omitempty"`
	BeforeState   string            `json:"before_state"`
	AfterState    string            `json:"after_state"`
	Timestamp     string            `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=50" binding:"min=1,max=500"`
}

// TimeRangeParams restricts an audit trail query to a window. Both bounds
// must be present for the restriction to apply.
type TimeRangeParams struct {
	From *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// mapSessionToResponse maps a session to its API representation, embedding
// the deadline classification evaluated at the given instant
func mapSessionToResponse(sess *session.Session, now time.Time) SessionResponse {
	response := SessionResponse{
		ID:                sess.ID.String(),
		BusinessID:        sess.BusinessID.String(),
		BatchID:           sess.BatchID.String(),
		Status:            string(sess.Status),
		TotalTransactions: sess.TotalTransactions,
		VerifiedCount:     sess.VerifiedCount,
		ApprovedCount:     sess.ApprovedCount,
		RejectedCount:     sess.RejectedCount,
		PendingCount:      sess.PendingCount(),
		CurrentIndex:      sess.CurrentIndex,
		AverageRiskScore:  sess.AverageRiskScore,
		Deadline:          sess.Deadline.Format(time.RFC3339),
		DeadlineStatus:    deadline.Classify(sess.Deadline, now),
		CreatedAt:         sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         sess.UpdatedAt.Format(time.RFC3339),
	}

	if sess.StartedAt != nil {
		response.StartedAt = sess.StartedAt.Format(time.RFC3339)
	}
	if sess.CompletedAt != nil {
		response.CompletedAt = sess.CompletedAt.Format(time.RFC3339)
	}

	return response
}

// mapTransactionToResponse maps a verification transaction to its API representation
func mapTransactionToResponse(txn *verification.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:                    txn.ID.String(),
		SessionID:             txn.SessionID.String(),
		ExternalTransactionID: txn.ExternalTransactionID,
		Amount:                txn.Amount,
		StoreReference:        txn.StoreReference,
		RiskScore:             txn.RiskScore,
		Position:              txn.Position,
		Decision:              string(txn.Decision),
		RejectionReason:       string(txn.RejectionReason),
		BusinessNote:          txn.BusinessNote,
		DecidedBy:             txn.DecidedBy,
	}

	if txn.DecidedAt != nil {
		response.DecidedAt = txn.DecidedAt.Format(time.RFC3339)
	}

	return response
}

// mapAuditEntryToResponse maps an audit entry to its API representation
func mapAuditEntryToResponse(entry *audit.Entry) AuditEntryResponse {
	response := AuditEntryResponse{
		ID:            entry.ID.String(),
		SessionID:     entry.SessionID.String(),
		EventType:     string(entry.EventType),
		ActorType:     string(entry.ActorType),
		Actor:         entry.Actor,
		BeforeState:   entry.BeforeState,
		AfterState:    entry.AfterState,
		Timestamp:     entry.Timestamp.Format(time.RFC3339),
		CorrelationID: entry.CorrelationID,
		Metadata:      entry.Metadata,
	}

	if entry.TransactionID != nil {
		response.TransactionID = entry.TransactionID.String()
	}

	return response
}
