package transfer

import (
	"errors"
	"fmt"
)

// TransientError represents a transport failure expected to clear on
// retry: timeouts, connection resets, rate limiting, 5xx responses.
type TransientError struct {
	Op         string // The operation that failed (e.g., "open_stream", "read_chunk")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP failures)
	Err        error  // Underlying error, if any
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient transport error during %s (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("transient transport error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents a transport failure that will not change on
// retry: missing resources, rejected credentials, malformed responses.
type PermanentError struct {
	Op         string // The operation that failed
	StatusCode int    // HTTP status code, if applicable
	Reason     string // Human-readable explanation
	Err        error  // Underlying error, if any
}

func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("permanent transport error during %s (HTTP %d): %s", e.Op, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("permanent transport error during %s: %s", e.Op, e.Reason)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// WriteError represents a destination failure: disk full, permission
// denied, rename failures. Never retried.
type WriteError struct {
	Path string // Destination path that could not be written
	Err  error  // Underlying error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error for %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error chain contains a retryable
// transport failure.
func IsTransient(err error) bool {
	var te *TransientError

	return errors.As(err, &te)
}
