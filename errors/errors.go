// Package errors provides error handling for aisguard.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// Usage:
//
//	// Wrap with context
//	if err := loader.Load(path); err != nil {
//	    return errors.Wrap(err, "failed to load AIS records")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "raise pulse.join_timeout_seconds")
//
//	// Check errors
//	if errors.Is(err, errors.ErrStageTimeout) {
//	    // stage degraded to an empty result
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the detection pipeline.
// Use these with errors.Is() and wrap them with errors.Wrap() to add context.
var (
	// ErrWorkerFailure indicates a single work item failed inside a worker.
	// The pool records it as "no result" for that item only.
	ErrWorkerFailure = New("worker failure")

	// ErrStageTimeout indicates a stage did not join within its bound and was cancelled.
	ErrStageTimeout = New("stage timeout")

	// ErrSchemaMismatch indicates an anomaly table lacks the vessel identifier column.
	ErrSchemaMismatch = New("schema mismatch")

	// ErrNoOutput indicates the orchestrator could not construct any valid output.
	ErrNoOutput = New("no valid output")

	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = New("invalid configuration")

	// ErrInvalidInput indicates an input file or row could not be parsed
	ErrInvalidInput = New("invalid input")
)

// IsDegradation reports whether err is a recoverable condition that degrades a
// stage result instead of failing the run.
func IsDegradation(err error) bool {
	return err != nil && IsAny(err, ErrWorkerFailure, ErrStageTimeout, ErrSchemaMismatch)
}

// NewWorkerFailure wraps a worker error with the item index that produced it
func NewWorkerFailure(item int, cause error) error {
	err := Wrapf(ErrWorkerFailure, "item %d", item)
	if cause != nil {
		err = WithSecondaryError(err, cause)
		err = WithDetail(err, cause.Error())
	}
	return err
}

// NewStageTimeout creates a timeout error for the named stage
func NewStageTimeout(stage string, after string) error {
	err := Wrapf(ErrStageTimeout, "%s did not join within %s", stage, after)
	return WithHint(err, "raise pulse.join_timeout_seconds or add workers")
}
