package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for operator commands and loop failures. Loops never treat
// any of these as fatal; the worst outcome is a missed or failed trigger.
var (
	// ErrInvalidParameter rejects bad input to a setter. No state changes.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMissingField rejects a trigger order spec with a required field absent.
	ErrMissingField = errors.New("missing required field")

	// ErrNotFound is returned when a cancel references an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrRaceRejected reports a cancel that arrived after the countdown or
	// order had already resolved. Benign: the caller lost the race.
	ErrRaceRejected = errors.New("already resolved")
)

// GatewayError wraps any venue call failure: non-success response, timeout
// or transport error. The engine treats them all identically as a recoverable
// failure of that single call.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err originated at the venue boundary.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
