package lifecycle

// Validation is the outcome of a soft check. A failed check carries a
// human-readable reason that is shown to the operator, who may still proceed.
type Validation struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Valid returns a passing validation.
func Valid() Validation {
	return Validation{OK: true}
}

// Invalid returns a failing validation with the given reason.
func Invalid(reason string) Validation {
	return Validation{OK: false, Reason: reason}
}
