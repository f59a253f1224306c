package domain

import (
	"errors"
	"fmt"
)

// Common domain errors surfaced by the deliberation pipeline.
var (
	// ErrEmptyQuery indicates a blank query was submitted.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrAllModelsFailed indicates every Stage-1 call failed; the run
	// is terminal and no later stage executes.
	ErrAllModelsFailed = errors.New("all models failed to respond")

	// ErrNoCouncil indicates the configured council is empty.
	ErrNoCouncil = errors.New("no council models configured")

	// ErrInvalidConfiguration indicates configuration is invalid or
	// incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// StageError wraps a failure with the pipeline stage that produced it.
// Partial per-call failures are recovered by omission and never become
// StageErrors; only stage-terminal conditions do.
type StageError struct {
	// Stage names the pipeline stage ("collect", "rank", "synthesize").
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As matching.
func (e *StageError) Unwrap() error { return e.Err }

// NewStageError creates a StageError for the given stage and cause.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
