package domain

import (
	"context"
	"time"
)

// SessionEvent describes a session lifecycle change.
type SessionEvent struct {
	At       time.Time     `json:"at"`
	Session  string        `json:"session"`
	Workflow string        `json:"workflow"`
	Status   SessionStatus `json:"status"`
}

// StepEvent describes one execution attempt. Result is nil on step start.
type StepEvent struct {
	At      time.Time   `json:"at"`
	Session string      `json:"session"`
	Step    string      `json:"step"`
	Kind    StepKind    `json:"kind"`
	Attempt int         `json:"attempt"`
	Result  *StepResult `json:"result,omitempty"`
}

// RetryEvent describes a scheduled re-attempt.
type RetryEvent struct {
	At      time.Time     `json:"at"`
	Session string        `json:"session"`
	Step    string        `json:"step"`
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
}

// Hooks defines callbacks for engine observability. All fields are optional;
// the engine invokes them synchronously and nil-safely.
type Hooks struct {
	OnSessionStart func(context.Context, *SessionEvent)
	OnSessionEnd   func(context.Context, *SessionEvent)
	OnStepStart    func(context.Context, *StepEvent)
	OnStepEnd      func(context.Context, *StepEvent)
	OnRetry        func(context.Context, *RetryEvent)
}

// Then returns hooks that invoke h first, then next.
func (h Hooks) Then(next Hooks) Hooks {
	return Hooks{
		OnSessionStart: chain(h.OnSessionStart, next.OnSessionStart),
		OnSessionEnd:   chain(h.OnSessionEnd, next.OnSessionEnd),
		OnStepStart:    chain(h.OnStepStart, next.OnStepStart),
		OnStepEnd:      chain(h.OnStepEnd, next.OnStepEnd),
		OnRetry:        chain(h.OnRetry, next.OnRetry),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(ctx context.Context, ev *E) {
			a(ctx, ev)
			b(ctx, ev)
		}
	}
}
