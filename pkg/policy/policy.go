// Package policy decides whether a failed step attempt is retried and how
// long the engine waits before trying again. Decisions are pure: the engine
// owns sleeping, persistence, and logging.
package policy

import (
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Defaults applied when a workflow or step leaves policy fields unset.
const (
	DefaultMaxAttempts           = 3
	DefaultValidationMaxAttempts = 3
	DefaultBaseDelay             = 500 * time.Millisecond
	DefaultMaxDelay              = 10 * time.Second
)

// Decision is the outcome of consulting the policy after a failed attempt.
// The zero value means give up.
type Decision struct {
	Retry bool
	Delay time.Duration
}

var giveUp = Decision{}

// Table evaluates recovery decisions against a default policy plus optional
// per-step overrides.
type Table struct {
	def domain.RetryPolicy
}

// NewTable builds a table. Zero fields of def inherit the package defaults.
func NewTable(def domain.RetryPolicy) *Table {
	return &Table{def: fill(def)}
}

// Default returns the effective engine-wide policy.
func (t *Table) Default() domain.RetryPolicy {
	return t.def
}

// Decide returns the recovery decision for an attempt that failed with the
// given class. attempt is 1-based: the first execution is attempt 1.
//
// Fatal failures are never retried. Transient failures retry with backoff
// until MaxAttempts. Validation failures retry only for model and input
// steps (re-prompting immediately, without backoff: there is no outage to
// wait out) until ValidationMaxAttempts; a deterministic step that misses
// its own contract is a definition bug and retrying would replay the same
// bytes.
func (t *Table) Decide(kind domain.StepKind, class domain.FailureClass, attempt int, override *domain.RetryPolicy) Decision {
	spec := t.def
	if override != nil {
		spec = merge(t.def, *override)
	}

	switch class {
	case domain.FailureTransient:
		if attempt >= spec.MaxAttempts {
			return giveUp
		}
		return Decision{Retry: true, Delay: Delay(spec, attempt)}
	case domain.FailureValidation:
		if kind == domain.StepDeterministic {
			return giveUp
		}
		if attempt >= spec.ValidationMaxAttempts {
			return giveUp
		}
		return Decision{Retry: true}
	default:
		return giveUp
	}
}

// Delay computes the wait before the attempt following the given one.
func Delay(spec domain.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch spec.Backoff {
	case domain.BackoffFixed:
		d = spec.BaseDelay
	case domain.BackoffLinear:
		d = spec.BaseDelay * time.Duration(attempt)
	default:
		d = spec.BaseDelay
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= spec.MaxDelay {
				break
			}
		}
	}

	if d > spec.MaxDelay {
		d = spec.MaxDelay
	}
	return d
}

func fill(p domain.RetryPolicy) domain.RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.ValidationMaxAttempts <= 0 {
		p.ValidationMaxAttempts = DefaultValidationMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Backoff == "" {
		p.Backoff = domain.BackoffExponential
	}
	return p
}

func merge(base, override domain.RetryPolicy) domain.RetryPolicy {
	out := base
	if override.MaxAttempts > 0 {
		out.MaxAttempts = override.MaxAttempts
	}
	if override.ValidationMaxAttempts > 0 {
		out.ValidationMaxAttempts = override.ValidationMaxAttempts
	}
	if override.BaseDelay > 0 {
		out.BaseDelay = override.BaseDelay
	}
	if override.MaxDelay > 0 {
		out.MaxDelay = override.MaxDelay
	}
	if override.Backoff != "" {
		out.Backoff = override.Backoff
	}
	return out
}
