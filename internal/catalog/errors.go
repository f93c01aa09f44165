package catalog

import (
	"errors"
	"fmt"
)

// TransientError wraps a failure that is worth retrying: rate limiting,
// server-side errors and transport faults.
type TransientError struct {
	Status int // HTTP status, zero for transport errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient catalog error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient catalog error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// ExhaustedError is returned when the retry ceiling is hit for a page request.
// Partial is the number of identifiers already yielded for the failing batch,
// so the caller knows exactly how much of the batch was lost.
type ExhaustedError struct {
	Attempts int
	Partial  int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("query exhausted after %d attempts (%d identifiers already retrieved in batch): %v",
		e.Attempts, e.Partial, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
