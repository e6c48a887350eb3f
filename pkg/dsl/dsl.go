package dsl

import (
	"fmt"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Builder assembles a workflow in code. Structural validation (unique ids,
// resolvable targets, reachability) is the registry's job; Build only
// rejects step configurations the builder itself cannot express.
type Builder struct {
	name    string
	version string
	start   string
	steps   []*StepBuilder
}

// New creates a builder for a named workflow.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Version sets the workflow version recorded in sessions.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// StartAt overrides the start step. Defaults to the first declared step.
func (b *Builder) StartAt(id string) *Builder {
	b.start = id
	return b
}

// Deterministic declares a step that runs a registered handler. The handler
// name defaults to the step id; use Handler or Exec to override.
func (b *Builder) Deterministic(id string) *StepBuilder {
	return b.add(id, domain.StepDeterministic, "")
}

// Model declares a step that sends the interpolated prompt to the model
// capability and validates the reply.
func (b *Builder) Model(id, prompt string) *StepBuilder {
	return b.add(id, domain.StepModelDriven, prompt)
}

// Input declares a step that suspends the session and records the
// interpolated prompt until the caller resumes with a value.
func (b *Builder) Input(id, prompt string) *StepBuilder {
	return b.add(id, domain.StepUserInput, prompt)
}

// Terminal declares an end step. Sessions reaching it complete.
func (b *Builder) Terminal(id string) *StepBuilder {
	return b.add(id, domain.StepTerminal, "")
}

func (b *Builder) add(id string, kind domain.StepKind, prompt string) *StepBuilder {
	sb := &StepBuilder{
		step: domain.StepDefinition{
			ID:     id,
			Kind:   kind,
			Prompt: prompt,
		},
	}
	b.steps = append(b.steps, sb)
	return sb
}

// Build compiles the declared steps into a workflow, in declaration order.
// The result still has to pass registry validation before it can run.
func (b *Builder) Build() (*domain.Workflow, error) {
	wf := &domain.Workflow{
		Name:    b.name,
		Version: b.version,
		Start:   b.start,
		Steps:   make([]domain.StepDefinition, 0, len(b.steps)),
	}
	if wf.Start == "" && len(b.steps) > 0 {
		wf.Start = b.steps[0].step.ID
	}
	for _, sb := range b.steps {
		step, err := sb.build()
		if err != nil {
			return nil, fmt.Errorf("dsl: %w", err)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}
