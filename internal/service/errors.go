package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a model response whose structure did not match what was asked for.
	ErrValidation = errors.New("service: invalid structured response")
	// ErrEmptyText is returned for blank task text or descriptions.
	ErrEmptyText = errors.New("service: text is required")
	// ErrInvalidInput wraps caller mistakes such as an unknown category or an out-of-range day count.
	ErrInvalidInput = errors.New("service: invalid input")
	// ErrApplyInFlight rejects a second apply run while one is running for the same owner.
	ErrApplyInFlight = errors.New("service: apply already in progress")
	// ErrApplyCancelled is reported when a run stops because its context was cancelled.
	ErrApplyCancelled = errors.New("service: apply cancelled")
)

// ApplyError describes an aborted apply run. Items before Index stay committed.
type ApplyError struct {
	Index     int
	Committed int
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply aborted at item %d (%d committed): %v", e.Index, e.Committed, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
