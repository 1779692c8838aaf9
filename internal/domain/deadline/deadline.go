// Package deadline converts a session deadline into the remaining-time and
// urgency classification shared by the review countdown and the sweep's
// eligibility test, so both use identical thresholds.
package deadline

import "time"

// Urgency is the human-facing classification of remaining review time
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// Classification bands
const (
	criticalWindow = 6 * time.Hour
	highWindow     = 24 * time.Hour
	mediumWindow   = 72 * time.Hour
)

// Classification is the result of evaluating a deadline at one instant
type Classification struct {
	SecondsRemaining int64   `json:"seconds_remaining"`
	IsOverdue        bool    `json:"is_overdue"`
	Urgency          Urgency `json:"urgency_level"`
}

// Classify evaluates the deadline at the given instant. It is pure and
// deterministic; callers inject now.
func Classify(deadline, now time.Time) Classification {
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	c := Classification{
		SecondsRemaining: int64(remaining / time.Second),
		IsOverdue:        now.After(deadline),
	}

	switch {
	case c.IsOverdue || remaining < criticalWindow:
		c.Urgency = UrgencyCritical
	case remaining < highWindow:
		c.Urgency = UrgencyHigh
	case remaining < mediumWindow:
		c.Urgency = UrgencyMedium
	default:
		c.Urgency = UrgencyLow
	}

	return c
}
