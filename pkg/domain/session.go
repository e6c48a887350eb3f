package domain

import "time"

// SessionStatus defines the lifecycle state of a session.
type SessionStatus string

const (
	// StatusRunning means the engine is (or may be) actively executing steps.
	StatusRunning SessionStatus = "running"
	// StatusSuspended means the session is parked waiting for user input.
	StatusSuspended SessionStatus = "suspended"
	// StatusCompleted means a terminal step was reached.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means recovery gave up on a step.
	StatusFailed SessionStatus = "failed"
	// StatusCancelled means the session was cancelled by the caller.
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Outcome classifies a single execution attempt.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeValidationFailure Outcome = "validation_failure"
	OutcomeTransientFailure  Outcome = "transient_failure"
	OutcomeFatalFailure      Outcome = "fatal_failure"
	// OutcomeAborted marks an attempt cut short by cancellation.
	OutcomeAborted Outcome = "aborted"
)

// StepResult records one execution attempt. Results are immutable once
// appended to a session's history.
type StepResult struct {
	Step    string        `json:"step"`
	Attempt int           `json:"attempt"`
	Outcome Outcome       `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
	Latency time.Duration `json:"latency"`
}

// SessionState is the full snapshot of one workflow session. Everything the
// engine needs to resume after a crash lives here.
type SessionState struct {
	ID              string         `json:"id"`
	Workflow        string         `json:"workflow"`
	WorkflowVersion string         `json:"workflow_version,omitempty"`
	Current         string         `json:"current"`
	Status          SessionStatus  `json:"status"`
	Awaiting        string         `json:"awaiting,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Context         map[string]any `json:"context"`
	History         []StepResult   `json:"history"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewSession creates a fresh session positioned at the workflow's start step.
func NewSession(id string, wf *Workflow, now time.Time) *SessionState {
	return &SessionState{
		ID:              id,
		Workflow:        wf.Name,
		WorkflowVersion: wf.Version,
		Current:         wf.Start,
		Status:          StatusRunning,
		Context:         make(map[string]any),
		History:         []StepResult{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone copies the session so callers cannot alias stored state. Context
// keys and the history slice are copied; context values are treated as
// immutable.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	out.History = append([]StepResult(nil), s.History...)
	return &out
}

// Terminal reports whether the session reached a final status.
func (s *SessionState) Terminal() bool {
	return s.Status.Terminal()
}

// PendingAttempts counts the failed attempts already recorded for the
// current step since the session arrived at it. Resumed sessions use this
// to keep retry budgets consistent across restarts.
func (s *SessionState) PendingAttempts() int {
	n := 0
	for i := len(s.History) - 1; i >= 0; i-- {
		r := s.History[i]
		if r.Step != s.Current || r.Outcome == OutcomeSuccess {
			break
		}
		n++
	}
	return n
}
