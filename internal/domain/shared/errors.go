package shared

// ValidationError indicates a client-supplied decision payload that cannot be
// accepted. It is surfaced verbatim to the caller and never retried.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Is matches any ValidationError when the target carries an empty message,
// otherwise requires an exact message match
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return true
	}
	return e.Message == t.Message
}

// Canonical validation failures for decision recording
var (
	ErrRejectionReasonRequired = ValidationError{Message: "Rejection reason is required when rejecting a transaction"}
	ErrBusinessNoteRequired    = ValidationError{Message: "Business notes are required when rejection reason is \"other\""}
	ErrUnknownDecision         = ValidationError{Message: "Decision must be either APPROVED or REJECTED"}
	ErrUnknownRejectionReason  = ValidationError{Message: "Unknown rejection reason"}
)
