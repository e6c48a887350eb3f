package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrStepNotFound is returned when a step id does not exist in the registry.
var ErrStepNotFound = errors.New("step not found")

// ErrSessionTerminal is returned when resuming a session that already finished.
var ErrSessionTerminal = errors.New("session already finished")

// ErrWorkflowMismatch is returned when a session was started under a
// different workflow name or version than the one loaded.
var ErrWorkflowMismatch = errors.New("session belongs to a different workflow")

// ErrInvalidTransition is returned when a resolved transition target is not
// in the step's allow-list.
var ErrInvalidTransition = errors.New("transition target not allowed")

// ErrAmbiguousTransition is returned when predicate rules match zero or more
// than one distinct target.
var ErrAmbiguousTransition = errors.New("ambiguous transition")

// ErrInputRequired is returned when a suspended session is resumed without
// the input it is waiting for.
var ErrInputRequired = errors.New("session awaiting user input")

// ErrSessionExists is returned when creating a session whose id is already
// taken.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionBusy is returned when a session is locked by another writer.
var ErrSessionBusy = errors.New("session is busy")

// FailureClass buckets a failed attempt for the recovery policy.
type FailureClass string

const (
	// FailureValidation marks output that violated the step's contract.
	FailureValidation FailureClass = "validation"
	// FailureTransient marks failures worth retrying (timeouts, rate limits).
	FailureTransient FailureClass = "transient"
	// FailureFatal marks failures no retry can fix.
	FailureFatal FailureClass = "fatal"
)

// Outcome maps the class to the history outcome it produces.
func (c FailureClass) Outcome() Outcome {
	switch c {
	case FailureValidation:
		return OutcomeValidationFailure
	case FailureTransient:
		return OutcomeTransientFailure
	default:
		return OutcomeFatalFailure
	}
}

// StepError carries the recovery classification of a failed step attempt.
type StepError struct {
	Class  FailureClass
	Reason string
	Err    error
}

// NewStepError wraps cause with a class and a human-readable reason.
func NewStepError(class FailureClass, reason string, cause error) *StepError {
	return &StepError{Class: class, Reason: reason, Err: cause}
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *StepError) Unwrap() error { return e.Err }

// Transient wraps cause as a retryable failure.
func Transient(reason string, cause error) *StepError {
	return NewStepError(FailureTransient, reason, cause)
}

// Fatal wraps cause as a failure no retry can fix.
func Fatal(reason string, cause error) *StepError {
	return NewStepError(FailureFatal, reason, cause)
}

// Invalid wraps cause as a contract violation.
func Invalid(reason string, cause error) *StepError {
	return NewStepError(FailureValidation, reason, cause)
}

// ClassOf extracts the failure class from an error. A classified StepError
// keeps its class, schema violations are validation failures, context
// deadline errors are transient, everything else is fatal.
func ClassOf(err error) FailureClass {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Class
	}
	var validationErr *schema.ValidationError
	var aggregateErr *schema.AggregateError
	if errors.As(err, &validationErr) || errors.As(err, &aggregateErr) {
		return FailureValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}
	return FailureFatal
}

// DefinitionError reports every structural problem found while loading a
// workflow definition, not just the first one.
type DefinitionError struct {
	Workflow string
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("workflow %q is invalid: %s", e.Workflow, strings.Join(e.Problems, "; "))
}
