package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/verification_worker/components"
)

// BatchEventHandler handles incoming batch_available messages from Kafka
type BatchEventHandler struct {
	creator components.SessionCreator
	logger  *slog.Logger
}

// NewBatchEventHandler creates a new handler
func NewBatchEventHandler(logger *slog.Logger, creator components.SessionCreator) *BatchEventHandler {
	return &BatchEventHandler{
		creator: creator,
		logger:  logger,
	}
}

// HandleMessage processes Kafka messages. Unprocessable messages are logged
// and committed; transient failures are returned so the message is redelivered.
func (h *BatchEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.BatchAvailableEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// A malformed payload will never parse, redelivering it would loop forever
		h.logger.Error("Failed to unmarshal batch event, dropping message",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	if err := validateEvent(&event); err != nil {
		h.logger.Error("Invalid batch event, dropping message",
			"error", err,
			"message_key", string(key),
			"batch_id", event.BatchID.String(),
		)
		return nil
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received batch for session creation",
		"batch_id", event.BatchID.String(),
		"business_id", event.BusinessID.String(),
		"transactions", len(event.Transactions),
		"deadline", event.Deadline,
	)

	if err := h.creator.CreateFromBatch(ctx, &event); err != nil {
		logger.Error("Failed to create session for batch",
			"batch_id", event.BatchID.String(),
			"error", err,
		)
		return fmt.Errorf("creating session for batch %s failed: %w", event.BatchID.String(), err)
	}

	return nil // Success, commit offset
}

func validateEvent(event *shared.BatchAvailableEvent) error {
	if event.BatchID == uuid.Nil || event.BusinessID == uuid.Nil {
		return fmt.Errorf("batch event is missing batch or business identifier")
	}
	if event.Deadline.IsZero() {
		return fmt.Errorf("batch event is missing a deadline")
	}
	if len(event.Transactions) == 0 {
		return fmt.Errorf("batch event contains no transactions")
	}
	return nil
}
