// Package registry loads workflow definitions and validates their structure
// before any session runs. A workflow that loads is guaranteed to have
// unique step ids, resolvable transition targets, a reachable terminal step,
// and compatible contracts between adjacent steps.
package registry

import (
	"fmt"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// Registry holds a validated workflow. It is immutable after Load: sessions
// started from it never observe definition changes.
type Registry struct {
	workflow *domain.Workflow
	steps    map[string]*domain.StepDefinition
}

// Load validates a workflow definition and indexes its steps. All structural
// problems are reported at once in a *domain.DefinitionError, not just the
// first one found.
func Load(wf *domain.Workflow) (*Registry, error) {
	if wf == nil {
		return nil, &domain.DefinitionError{Problems: []string{"workflow is nil"}}
	}

	problems := check(wf)
	if len(problems) > 0 {
		return nil, &domain.DefinitionError{Workflow: wf.Name, Problems: problems}
	}

	// Copy the step slice so later mutations of the caller's workflow value
	// cannot leak into running sessions.
	own := *wf
	own.Steps = append([]domain.StepDefinition(nil), wf.Steps...)

	steps := make(map[string]*domain.StepDefinition, len(own.Steps))
	for i := range own.Steps {
		steps[own.Steps[i].ID] = &own.Steps[i]
	}

	return &Registry{workflow: &own, steps: steps}, nil
}

// Get returns the step with the given id.
func (r *Registry) Get(id string) (*domain.StepDefinition, error) {
	step, ok := r.steps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	return step, nil
}

// Workflow returns the loaded definition.
func (r *Registry) Workflow() *domain.Workflow {
	return r.workflow
}

// Steps returns the validated step definitions in definition order.
func (r *Registry) Steps() []domain.StepDefinition {
	return r.workflow.Steps
}

// Start returns the workflow's start step.
func (r *Registry) Start() *domain.StepDefinition {
	return r.steps[r.workflow.Start]
}

func check(wf *domain.Workflow) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if wf.Name == "" {
		report("workflow has no name")
	}
	if wf.Start == "" {
		report("workflow has no start step")
	}
	if len(wf.Steps) == 0 {
		report("workflow has no steps")
		return problems
	}

	ids := make(map[string]bool, len(wf.Steps))
	for i := range wf.Steps {
		step := &wf.Steps[i]
		if step.ID == "" {
			report("step %d has no id", i)
			continue
		}
		if ids[step.ID] {
			report("duplicate step id %q", step.ID)
			continue
		}
		ids[step.ID] = true
	}

	if wf.Start != "" && !ids[wf.Start] {
		report("start step %q does not exist", wf.Start)
	}

	for i := range wf.Steps {
		checkStep(&wf.Steps[i], ids, report)
	}

	if len(problems) > 0 {
		// Reachability over a structurally broken graph produces noise.
		return problems
	}

	checkReachability(wf, report)
	checkAdjacentContracts(wf, report)

	return problems
}

func checkStep(step *domain.StepDefinition, ids map[string]bool, report func(string, ...any)) {
	switch step.Kind {
	case domain.StepDeterministic:
		if step.Handler == "" && len(step.Exec) == 0 {
			report("deterministic step %q names no handler", step.ID)
		}
	case domain.StepModelDriven:
		if step.Prompt == "" {
			report("model step %q has no prompt", step.ID)
		}
	case domain.StepUserInput:
		if step.Prompt == "" {
			report("input step %q has no prompt", step.ID)
		}
	case domain.StepTerminal:
		if step.Next.Kind() != domain.TransitionNone {
			report("terminal step %q cannot have transitions", step.ID)
		}
		if step.Output != nil {
			report("terminal step %q cannot declare an output contract", step.ID)
		}
		return
	default:
		report("step %q has unknown kind %q", step.ID, step.Kind)
		return
	}

	if step.Output == nil {
		report("step %q has no output contract", step.ID)
	}

	variants := 0
	if step.Next.To != "" {
		variants++
	}
	if len(step.Next.Rules) > 0 {
		variants++
	}
	if len(step.Next.ChooseFrom) > 0 {
		variants++
	}
	switch variants {
	case 0:
		report("step %q has no transition", step.ID)
		return
	case 1:
	default:
		report("step %q mixes transition variants", step.ID)
		return
	}

	for _, rule := range step.Next.Rules {
		if rule.When == "" {
			report("step %q has a predicate rule without an expression", step.ID)
		}
	}

	if len(step.Next.ChooseFrom) > 0 {
		if step.Kind != domain.StepModelDriven {
			report("step %q uses a model-chosen transition but is not model-driven", step.ID)
		} else if step.Output != nil {
			field := step.Next.ChoiceField()
			t, declared := step.Output.Fields()[field]
			if !declared {
				report("step %q choice field %q is not a declared output", step.ID, field)
			} else if !stringish(t) {
				report("step %q choice field %q must be a string output, got %s", step.ID, field, t.Name())
			}
		}
	}

	for _, target := range step.Next.Targets() {
		if !ids[target] {
			report("step %q routes to unknown step %q", step.ID, target)
		}
	}
}

// checkReachability walks every statically declared edge from the start step
// and verifies that a terminal step can be reached and no step is orphaned.
func checkReachability(wf *domain.Workflow, report func(string, ...any)) {
	visited := make(map[string]bool, len(wf.Steps))
	queue := []string{wf.Start}
	terminalReached := false

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		step := wf.Step(id)
		if step.Kind == domain.StepTerminal {
			terminalReached = true
			continue
		}
		for _, target := range step.Next.Targets() {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	if !terminalReached {
		report("no terminal step is reachable from %q", wf.Start)
	}
	for i := range wf.Steps {
		if !visited[wf.Steps[i].ID] {
			report("step %q is unreachable from %q", wf.Steps[i].ID, wf.Start)
		}
	}
}

// checkAdjacentContracts flags direct type conflicts between a step's output
// fields and the input requirements of its possible successors. Inputs fed
// from earlier context cannot be checked statically and are verified at run
// time instead.
func checkAdjacentContracts(wf *domain.Workflow, report func(string, ...any)) {
	for i := range wf.Steps {
		step := &wf.Steps[i]
		if step.Output == nil {
			continue
		}
		produced := step.Output.Fields()

		for _, target := range step.Next.Targets() {
			next := wf.Step(target)
			if next == nil {
				continue
			}
			for key, want := range next.Input {
				got, ok := produced[key]
				if !ok {
					continue
				}
				if got.Name() != want.Name() {
					report("step %q outputs %q as %s but step %q expects %s",
						step.ID, key, got.Name(), next.ID, want.Name())
				}
			}
		}
	}
}

func stringish(t schema.Type) bool {
	switch t.(type) {
	case *schema.StringType, *schema.EnumType:
		return true
	default:
		return false
	}
}
