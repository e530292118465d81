// Package fault classifies adapter failures for the retry policy. Transient
// failures (timeouts, 5xx-class responses) are retried with backoff;
// everything else is permanent and surfaces as a stage failure.
package fault

import (
	"context"
	"errors"
)

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks an error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type exhaustedError struct {
	err error
}

func (e *exhaustedError) Error() string {
	return e.err.Error()
}

func (e *exhaustedError) Unwrap() error {
	return e.err
}

// Exhausted marks a transient error whose retry budget is spent. From then on
// the failure is permanent.
func Exhausted(err error) error {
	if err == nil {
		return nil
	}
	return &exhaustedError{err: err}
}

// IsTransient reports whether the error is retryable. Deadline expiry counts
// as transient; cancellation does not, and neither does a transient error
// that exhausted its retries.
func IsTransient(err error) bool {
	var ee *exhaustedError
	if errors.As(err, &ee) {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
