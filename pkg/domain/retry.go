package domain

import "time"

// BackoffKind selects how retry delays grow between attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy bounds how often a step may be re-attempted and how long the
// engine waits between attempts. The zero value means "use the engine
// default"; individual zero fields inherit the default as well.
type RetryPolicy struct {
	// MaxAttempts caps attempts for transient failures.
	MaxAttempts int
	// ValidationMaxAttempts caps attempts for contract violations on model
	// and input steps. Deterministic validation failures are never retried.
	ValidationMaxAttempts int
	// BaseDelay is the first retry delay.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Backoff selects the growth curve. Defaults to exponential.
	Backoff BackoffKind
}
