package profile

import (
	"errors"
	"fmt"
)

// ValidationReason categorizes why a field value was rejected.
type ValidationReason string

const (
	// ReasonPattern indicates free text outside the allowed pattern.
	ReasonPattern ValidationReason = "PATTERN"

	// ReasonNotNumber indicates a numeric field that does not parse.
	ReasonNotNumber ValidationReason = "NOT_NUMBER"

	// ReasonOutOfRange indicates a numeric field outside [Min, Max].
	ReasonOutOfRange ValidationReason = "OUT_OF_RANGE"
)

// ValidationError blocks a save. It is raised locally and never reaches
// the network.
type ValidationError struct {
	Field  string
	Value  string
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidationError returns true if err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
