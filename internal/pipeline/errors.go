// Package pipeline defines the uniform contract shared by every
// vendor-call stage: a Stage interface over the job, a failure taxonomy and
// a bounded, cancellable polling primitive for vendor-side async work.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"storyforge/internal/domain"
)

// FailureKind classifies stage failures so callers can distinguish a limit
// denial from a vendor error from a missing precondition.
type FailureKind string

const (
	FailureInvalidInput       FailureKind = "invalid_input"
	FailureVendorRejected     FailureKind = "vendor_rejected"
	FailureVendorTimeout      FailureKind = "vendor_timeout"
	FailureVendorUnavailable  FailureKind = "vendor_unavailable"
	FailureLimitReached       FailureKind = "limit_reached"
	FailureStorageUnavailable FailureKind = "storage_unavailable"
	FailureMissingDependency  FailureKind = "missing_dependency"
)

// Error is the uniform stage/vendor failure. Status carries the vendor HTTP
// status when one exists.
type Error struct {
	Kind    FailureKind
	Stage   string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid reports caller-supplied data failing validation before any vendor
// call.
func Invalid(message string) *Error {
	return &Error{Kind: FailureInvalidInput, Message: message}
}

// Rejected reports a structured vendor failure; surfaced verbatim, never
// retried.
func Rejected(status int, message string) *Error {
	return &Error{Kind: FailureVendorRejected, Status: status, Message: message}
}

// Timeout reports an exhausted polling budget.
func Timeout(message string) *Error {
	return &Error{Kind: FailureVendorTimeout, Message: message}
}

// Unavailable reports a network-level failure reaching the vendor.
func Unavailable(err error) *Error {
	return &Error{Kind: FailureVendorUnavailable, Err: err}
}

// LimitDenied reports an admission denial by the usage ledger.
func LimitDenied(kind domain.ContentKind) *Error {
	return &Error{Kind: FailureLimitReached, Message: fmt.Sprintf("%s generation limit reached", kind)}
}

// MissingDependency reports an unmet stage precondition.
func MissingDependency(message string) *Error {
	return &Error{Kind: FailureMissingDependency, Message: message}
}

// WithStage returns err annotated with the stage name, wrapping non-Error
// values into the taxonomy via KindOf.
func WithStage(stage string, err error) *Error {
	if err == nil {
		return nil
	}
	var stageErr *Error
	if errors.As(err, &stageErr) {
		annotated := *stageErr
		annotated.Stage = stage
		return &annotated
	}
	return &Error{Kind: KindOf(err), Stage: stage, Err: err}
}

// KindOf classifies an arbitrary error into the failure taxonomy.
func KindOf(err error) FailureKind {
	var stageErr *Error
	switch {
	case errors.As(err, &stageErr):
		return stageErr.Kind
	case errors.Is(err, domain.ErrStorageUnavailable):
		return FailureStorageUnavailable
	case errors.Is(err, domain.ErrLimitReached):
		return FailureLimitReached
	case errors.Is(err, domain.ErrMissingDependency):
		return FailureMissingDependency
	case errors.Is(err, domain.ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return FailureVendorTimeout
	default:
		return FailureVendorUnavailable
	}
}

// Reason returns the human-readable failure message for an error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var stageErr *Error
	if errors.As(err, &stageErr) {
		if stageErr.Message != "" {
			return stageErr.Message
		}
		if stageErr.Err != nil {
			return stageErr.Err.Error()
		}
	}
	return err.Error()
}
