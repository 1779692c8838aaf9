package shared

import (
	"time"

	"github.com/google/uuid"
)

// RawTransaction is one transaction as delivered by the Batch Store. Amount,
// store reference, and risk score are opaque pass-through data for the engine.
type RawTransaction struct {
	ExternalTransactionID string  `json:"external_transaction_id"`
	Amount                int64   `json:"amount"` // Stored in cents/minor units
	StoreReference        string  `json:"store_reference"`
	RiskScore             float64 `json:"risk_score"`
}

// BatchAvailableEvent announces that a business's weekly batch is ready for
// review. The Batch Store publishes one event per batch; transactions arrive
// in review order.
type BatchAvailableEvent struct {
	BatchID       uuid.UUID        `json:"batch_id"`
	BusinessID    uuid.UUID        `json:"business_id"`
	Deadline      time.Time        `json:"deadline"`
	Transactions  []RawTransaction `json:"transactions"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// SweepNotification is the message delivered to the Notification Sink after
// the sweep resolves a session. Delivery is fire-and-forget: a failed publish
// never rolls back the resolution it describes.
type SweepNotification struct {
	SessionID         uuid.UUID    `json:"session_id"`
	BatchID           uuid.UUID    `json:"batch_id"`
	BusinessID        uuid.UUID    `json:"business_id"`
	Outcome           SweepOutcome `json:"outcome"`
	AutoApprovedCount int          `json:"auto_approved_count"`
	CompletedAt       time.Time    `json:"completed_at"`
}
