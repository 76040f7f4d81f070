// Package provider implements the shared rate-limited, retrying call path
// used for every external provider, plus the error taxonomy the engines
// dispatch on.
package provider

import (
	"fmt"
	"time"
)

// Error is the typed failure produced when a provider call exhausts its
// retries. Engines log it against the current unit or record and continue;
// it never aborts a whole run by itself.
type Error struct {
	Provider string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeoutError signals that an async job's polling budget was exhausted.
// The whole batch is aborted with no partial writes; retrying the batch
// later is safe.
type TimeoutError struct {
	Provider string
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: polling budget %s exhausted", e.Provider, e.Budget)
}

// ValidationError signals that fetched or generated content failed a
// structural check. The record is skipped but the surrounding cursor still
// advances, so one malformed record cannot wedge the pipeline.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}
