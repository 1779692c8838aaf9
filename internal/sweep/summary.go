package sweep

import (
	"time"

	"github.com/google/uuid"
	"github.com/verification-workflow-engine/internal/domain/shared"
)

// SessionResult records how the sweep resolved one session
type SessionResult struct {
	SessionID        uuid.UUID           `json:"session_id"`
	BatchID          uuid.UUID           `json:"batch_id"`
	BusinessID       uuid.UUID           `json:"business_id"`
	Outcome          shared.SweepOutcome `json:"outcome"`
	AutoApproved     int                 `json:"auto_approved"`
	NotificationSent bool                `json:"notification_sent"`
	Error            string              `json:"error,omitempty"`
}

// Summary aggregates one sweep pass
type Summary struct {
	ProcessedCount    int             `json:"processed_count"`
	SuccessCount      int             `json:"success_count"`
	FailureCount      int             `json:"failure_count"`
	SkippedCount      int             `json:"skipped_count"`
	TotalAutoApproved int             `json:"total_auto_approved"`
	Results           []SessionResult `json:"results"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
}

// add folds one session result into the summary counters
func (s *Summary) add(result SessionResult) {
	s.ProcessedCount++
	s.TotalAutoApproved += result.AutoApproved
	switch result.Outcome {
	case shared.SweepOutcomeFailed:
		s.FailureCount++
	case shared.SweepOutcomeSkipped:
		s.SkippedCount++
	default:
		s.SuccessCount++
	}
	s.Results = append(s.Results, result)
}
