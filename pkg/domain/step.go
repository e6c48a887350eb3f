package domain

import (
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// StepKind constants define how a step produces its output.
type StepKind string

const (
	// StepDeterministic runs an injected handler function (scripted work).
	StepDeterministic StepKind = "deterministic"
	// StepModelDriven sends a prompt to the model capability and validates the reply.
	StepModelDriven StepKind = "model"
	// StepUserInput parks the session until the caller supplies a value.
	StepUserInput StepKind = "input"
	// StepTerminal ends the session with status Completed.
	StepTerminal StepKind = "terminal"
)

// StepDefinition is one unit of a workflow.
type StepDefinition struct {
	ID   string
	Kind StepKind

	// Prompt is the model prompt template (model steps) or the question
	// recorded while suspended (input steps). Supports ${key} interpolation
	// from the session context.
	Prompt string

	// Handler names the registered function executed by deterministic steps.
	Handler string

	// Exec is an optional argv for subprocess-backed handlers. When set and
	// no handler with the same name is registered, the engine wires one.
	Exec []string

	// Input lists context keys that must be present (and typed) before the
	// step may execute.
	Input schema.Schema

	// Output is the contract the step's raw output must satisfy. Required
	// for every kind except terminal.
	Output schema.Contract

	// Next describes where the session goes after this step succeeds.
	Next Transition

	// Retry overrides the engine-wide recovery policy for this step.
	Retry *RetryPolicy

	// Timeout bounds a single model call attempt. Zero means the adapter
	// default applies.
	Timeout time.Duration
}

// TransitionKind tags the variant a Transition uses.
type TransitionKind string

const (
	TransitionNone      TransitionKind = "none"
	TransitionFixed     TransitionKind = "fixed"
	TransitionPredicate TransitionKind = "predicate"
	TransitionChoice    TransitionKind = "choice"
)

// PredicateRule routes to To when the When expression evaluates true
// against the step's output and the session context.
type PredicateRule struct {
	When string
	To   string
}

// Transition is the routing rule of a step. Exactly one variant may be set:
// a fixed target, a list of predicate rules, or a model-chosen target drawn
// from an allow-list.
type Transition struct {
	To         string
	Rules      []PredicateRule
	ChooseFrom []string
	// ChoiceKey names the output field holding the model-suggested target.
	// Defaults to "next".
	ChoiceKey string
}

// Kind reports which variant this transition uses. The zero value is
// TransitionNone (only valid on terminal steps).
func (t Transition) Kind() TransitionKind {
	switch {
	case len(t.Rules) > 0:
		return TransitionPredicate
	case len(t.ChooseFrom) > 0:
		return TransitionChoice
	case t.To != "":
		return TransitionFixed
	default:
		return TransitionNone
	}
}

// Targets returns every step id this transition can statically reach.
func (t Transition) Targets() []string {
	switch t.Kind() {
	case TransitionFixed:
		return []string{t.To}
	case TransitionPredicate:
		targets := make([]string, 0, len(t.Rules))
		for _, r := range t.Rules {
			targets = append(targets, r.To)
		}
		return targets
	case TransitionChoice:
		return append([]string(nil), t.ChooseFrom...)
	default:
		return nil
	}
}

// ChoiceField returns the output field carrying a model-suggested target.
func (t Transition) ChoiceField() string {
	if t.ChoiceKey != "" {
		return t.ChoiceKey
	}
	return "next"
}

// Workflow is a named, versioned set of steps. It is immutable once loaded
// into a registry; sessions record the name and version they started under.
type Workflow struct {
	Name    string
	Version string
	Start   string
	Steps   []StepDefinition
}

// Step returns the definition with the given id, or nil.
func (w *Workflow) Step(id string) *StepDefinition {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}
