package runtime

import (
	"context"
	"fmt"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// resolveNext picks the step that follows a successful attempt. fields holds
// the attempt's typed output; the session context has already absorbed it.
// Resolution failures are fatal: the definition routed the session somewhere
// it must not go, and retrying would replay the same route.
func (e *Engine) resolveNext(ctx context.Context, step *domain.StepDefinition, state *domain.SessionState, fields map[string]any) (string, error) {
	next := step.Next
	switch next.Kind() {
	case domain.TransitionFixed:
		return next.To, nil

	case domain.TransitionPredicate:
		return e.resolveRules(ctx, step, state, fields)

	case domain.TransitionChoice:
		return resolveChoice(step, fields)

	default:
		return "", domain.Fatal(fmt.Sprintf("step %q has no transition", step.ID), nil)
	}
}

// resolveRules evaluates every predicate rule and requires exactly one
// distinct matching target. Rules see two globals: "ctx" is the accumulated
// session context, "output" the fields this attempt produced.
func (e *Engine) resolveRules(ctx context.Context, step *domain.StepDefinition, state *domain.SessionState, fields map[string]any) (string, error) {
	env := map[string]any{
		"ctx":    state.Context,
		"output": fields,
	}

	matched := make(map[string]bool)
	var target string
	for _, rule := range step.Next.Rules {
		ok, err := e.evaluator.Evaluate(ctx, rule.When, env)
		if err != nil {
			return "", domain.Fatal(fmt.Sprintf("step %q rule %q failed", step.ID, rule.When), err)
		}
		if ok && !matched[rule.To] {
			matched[rule.To] = true
			target = rule.To
		}
	}

	switch len(matched) {
	case 0:
		return "", domain.Fatal(
			fmt.Sprintf("step %q: no transition rule matched", step.ID),
			domain.ErrAmbiguousTransition)
	case 1:
	default:
		return "", domain.Fatal(
			fmt.Sprintf("step %q: transition rules matched %d targets", step.ID, len(matched)),
			domain.ErrAmbiguousTransition)
	}

	// The registry guarantees rule targets statically; recheck anyway so a
	// mutated definition can never route a session off the graph.
	if !allows(step.Next.Targets(), target) {
		return "", domain.Fatal(
			fmt.Sprintf("step %q: target %q is not in the allow-list", step.ID, target),
			domain.ErrInvalidTransition)
	}
	return target, nil
}

// resolveChoice reads the model-suggested target from the attempt's output
// and requires it to be a member of the declared candidate set.
func resolveChoice(step *domain.StepDefinition, fields map[string]any) (string, error) {
	field := step.Next.ChoiceField()
	value, ok := fields[field]
	if !ok {
		return "", domain.Fatal(
			fmt.Sprintf("step %q: output has no %q field to choose by", step.ID, field),
			domain.ErrInvalidTransition)
	}
	choice, ok := value.(string)
	if !ok {
		return "", domain.Fatal(
			fmt.Sprintf("step %q: choice field %q is %T, not a string", step.ID, field, value),
			domain.ErrInvalidTransition)
	}
	if !allows(step.Next.ChooseFrom, choice) {
		return "", domain.Fatal(
			fmt.Sprintf("step %q: model chose %q, allowed targets are %v", step.ID, choice, step.Next.ChooseFrom),
			domain.ErrInvalidTransition)
	}
	return choice, nil
}

func allows(targets []string, id string) bool {
	for _, t := range targets {
		if t == id {
			return true
		}
	}
	return false
}
