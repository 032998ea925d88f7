package tracking

import (
	"errors"
	"fmt"
)

// ErrIllegalState is returned by Start and Stop after Release.
var ErrIllegalState = errors.New("tracking: tracker released")

// ErrStartInterrupted is returned by a Start whose handshake was cut
// short by Stop or Release. The tracker is Stopped, not in Error.
var ErrStartInterrupted = errors.New("tracking: start interrupted by stop")

// StartError reports a capture source that could not begin a session.
// The tracker is in the Error state when Start returns one.
type StartError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *StartError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tracking: start failed: %s", e.Reason)
	}
	return fmt.Sprintf("tracking: start failed: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartError) Unwrap() error {
	return e.Err
}

// IsStartError reports whether err is or wraps a *StartError.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}

// failureReason extracts a human-readable reason from a source error.
func failureReason(err error) string {
	if err == nil {
		return "unknown failure"
	}
	var se *StartError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}
