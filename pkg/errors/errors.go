// Package errors provides structured error types for stackbuild.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the resolver, scheduler and CLI
//   - Machine-readable error codes for programmatic handling
//   - Typed errors carrying the data needed to explain a failure
//     (the cycle, the stuck jobs, the unsatisfied constraints)
//
// # Error Codes
//
// Resolution-phase codes (NOT_FOUND, UNSATISFIABLE_CONSTRAINT,
// RESOLUTION_DIVERGED, CYCLIC_DEPENDENCY) are fatal to a run. BUILD_FAILED is
// recorded per job and never aborts a run. CANCELLED marks a stop request.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown release: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle configuration error
//	}
//
//	var cyc *errors.CyclicDependencyError
//	if stderrors.As(err, &cyc) {
//	    fmt.Println(cyc.Cycle)
//	}
package errors

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidRelease Code = "INVALID_RELEASE"
	ErrCodeInvalidVersion Code = "INVALID_VERSION"

	// Resolution errors
	ErrCodeNotFound                Code = "NOT_FOUND"
	ErrCodeUnsatisfiableConstraint Code = "UNSATISFIABLE_CONSTRAINT"
	ErrCodeResolutionDiverged      Code = "RESOLUTION_DIVERGED"
	ErrCodeCyclicDependency        Code = "CYCLIC_DEPENDENCY"

	// Scheduling errors
	ErrCodeUnsatisfiableSchedule Code = "UNSATISFIABLE_SCHEDULE"
	ErrCodeBuildFailed           Code = "BUILD_FAILED"
	ErrCodeCancelled             Code = "CANCELLED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Coder is implemented by every error type of this package.
type Coder interface {
	Code() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.Message)
}

// Code returns the error code.
func (e *Error) Code() Code { return e.code }

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It walks the error chain and matches the first error carrying a code,
// so an outer code takes precedence over the codes of its causes.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// NotFoundError is returned when a package index or metadata provider has no
// record of a name, or when a dependency references an unknown identifier.
type NotFoundError struct {
	Name string // Missing identifier
	From string // Dependent that referenced it (optional)
	Err  error  // Underlying lookup error (optional)
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found", e.Name)
	if e.From != "" {
		msg = fmt.Sprintf("%s (required by %s)", msg, e.From)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Code returns ErrCodeNotFound.
func (e *NotFoundError) Code() Code { return ErrCodeNotFound }

// UnsatisfiableConstraintError is returned when no published version of a
// library satisfies all of its accumulated constraints.
type UnsatisfiableConstraintError struct {
	Name        string
	Constraints []string
	Available   []string
}

func (e *UnsatisfiableConstraintError) Error() string {
	return fmt.Sprintf("no version of %s satisfies [%s] (published: %s)",
		e.Name, strings.Join(e.Constraints, ", "), strings.Join(e.Available, ", "))
}

// Code returns ErrCodeUnsatisfiableConstraint.
func (e *UnsatisfiableConstraintError) Code() Code { return ErrCodeUnsatisfiableConstraint }

// ResolutionDivergedError is returned when closure building does not reach a
// fixed point within its iteration bound.
type ResolutionDivergedError struct {
	Rounds  int // Rounds executed before giving up
	Nodes   int // Nodes discovered so far
	Pending []string
}

func (e *ResolutionDivergedError) Error() string {
	return fmt.Sprintf("dependency resolution did not converge after %d rounds (%d nodes, %d still pending)",
		e.Rounds, e.Nodes, len(e.Pending))
}

// Code returns ErrCodeResolutionDiverged.
func (e *ResolutionDivergedError) Code() Code { return ErrCodeResolutionDiverged }

// CyclicDependencyError names a dependency cycle. The first and last
// elements of Cycle are the same identifier.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// Code returns ErrCodeCyclicDependency.
func (e *CyclicDependencyError) Code() Code { return ErrCodeCyclicDependency }

// UnsatisfiableScheduleError is returned by the scheduler when nothing runs,
// jobs remain pending and none of them can ever be dispatched.
type UnsatisfiableScheduleError struct {
	// Stuck maps each stuck job to the dependencies it is still waiting on.
	Stuck map[string][]string
}

func (e *UnsatisfiableScheduleError) Error() string {
	ids := make([]string, 0, len(e.Stuck))
	for id := range e.Stuck {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (waiting on %s)", id, strings.Join(e.Stuck[id], ", ")))
	}
	return fmt.Sprintf("unsatisfiable schedule, %d stuck jobs: %s", len(ids), strings.Join(parts, "; "))
}

// Code returns ErrCodeUnsatisfiableSchedule.
func (e *UnsatisfiableScheduleError) Code() Code { return ErrCodeUnsatisfiableSchedule }

// BuildFailedError records the failure of a single job's build callback.
// It is non-fatal to a run.
type BuildFailedError struct {
	ID  string
	Err error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.ID, e.Err)
}

func (e *BuildFailedError) Unwrap() error { return e.Err }

// Code returns ErrCodeBuildFailed.
func (e *BuildFailedError) Code() Code { return ErrCodeBuildFailed }

// CancelledError is returned when a stop request arrives before scheduling
// started. Once scheduling runs, cancellation yields a partial report instead.
type CancelledError struct {
	Stage string
	Err   error
}

func (e *CancelledError) Error() string {
	if e.Stage == "" {
		return "cancelled"
	}
	return "cancelled during " + e.Stage
}

func (e *CancelledError) Unwrap() error { return e.Err }

// Code returns ErrCodeCancelled.
func (e *CancelledError) Code() Code { return ErrCodeCancelled }
