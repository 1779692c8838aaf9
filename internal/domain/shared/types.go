package shared

// Decision defines the terminal verification outcome for a transaction
type Decision string

const (
	DecisionPending      Decision = "PENDING"
	DecisionApproved     Decision = "APPROVED"
	DecisionRejected     Decision = "REJECTED"
	DecisionAutoApproved Decision = "AUTO_APPROVED"
)

// RejectionReason is the closed set of reasons a business may give when
// rejecting a transaction. ReasonOther requires an accompanying note.
type RejectionReason string

const (
	ReasonUnauthorized    RejectionReason = "unauthorized"
	ReasonIncorrectAmount RejectionReason = "incorrect_amount"
	ReasonDuplicateCharge RejectionReason = "duplicate_charge"
	ReasonFraudSuspected  RejectionReason = "fraud_suspected"
	ReasonOther           RejectionReason = "other"
)

// Valid reports whether the reason is one of the known rejection reasons
func (r RejectionReason) Valid() bool {
	switch r {
	case ReasonUnauthorized, ReasonIncorrectAmount, ReasonDuplicateCharge, ReasonFraudSuspected, ReasonOther:
		return true
	}
	return false
}

// ActorType identifies who caused a state change
type ActorType string

const (
	ActorTypeBusinessUser ActorType = "business_user"
	ActorTypeSystem       ActorType = "system"
)

const (
	// SystemActor is the decidedBy value for sweep-driven decisions
	SystemActor = "system"

	// AutoApprovalNote is attached to every transaction the sweep resolves
	AutoApprovalNote = "Auto-approved due to deadline expiration"
)

// SweepOutcome categorizes how the sweep resolved an expired session
type SweepOutcome string

const (
	SweepOutcomeDeadlineExpired  SweepOutcome = "deadline_expired"
	SweepOutcomeAlreadyCompleted SweepOutcome = "already_completed"
	SweepOutcomeBatchDiscarded   SweepOutcome = "batch_discarded"
	SweepOutcomeSkipped          SweepOutcome = "skipped"
	SweepOutcomeFailed           SweepOutcome = "failed"
)
