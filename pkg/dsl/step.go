package dsl

import (
	"errors"
	"fmt"
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// StepBuilder provides a fluent API for configuring one step.
type StepBuilder struct {
	step    domain.StepDefinition
	fields  schema.Schema
	paths   map[string]string
	variant string // "value" or "extraction" once an output method ran
	text    string // whole-reply binding field
	err     error
}

// Handler names the registered function a deterministic step runs.
func (s *StepBuilder) Handler(name string) *StepBuilder {
	s.step.Handler = name
	return s
}

// Exec backs a deterministic step with a subprocess instead of a registered
// handler.
func (s *StepBuilder) Exec(argv ...string) *StepBuilder {
	s.step.Exec = argv
	return s
}

// Needs requires a typed context key to be present before the step runs.
func (s *StepBuilder) Needs(key string, t schema.Type) *StepBuilder {
	if s.step.Input == nil {
		s.step.Input = schema.Schema{}
	}
	s.step.Input[key] = t
	return s
}

// Returns declares a structured output field, as produced by deterministic
// handlers and user input.
func (s *StepBuilder) Returns(field string, t schema.Type) *StepBuilder {
	s.setVariant("value")
	s.setField(field, t)
	return s
}

// Extract declares a typed field pulled out of a JSON model reply. The
// field name doubles as the gjson path; use ExtractPath for nested data.
func (s *StepBuilder) Extract(field string, t schema.Type) *StepBuilder {
	s.setVariant("extraction")
	s.setField(field, t)
	return s
}

// ExtractPath declares a typed field pulled from a JSON model reply by an
// explicit gjson path.
func (s *StepBuilder) ExtractPath(field, path string, t schema.Type) *StepBuilder {
	s.setVariant("extraction")
	s.setField(field, t)
	if s.paths == nil {
		s.paths = make(map[string]string)
	}
	s.paths[field] = path
	return s
}

// Text binds the whole trimmed model reply to a single typed field. It
// cannot be combined with Extract.
func (s *StepBuilder) Text(field string, t schema.Type) *StepBuilder {
	s.setVariant("extraction")
	if len(s.fields) > 0 {
		s.fail(errors.New("text binding cannot be combined with extracted fields"))
		return s
	}
	s.text = field
	s.setField(field, t)
	return s
}

// Go routes to a fixed next step.
func (s *StepBuilder) Go(target string) *StepBuilder {
	s.step.Next.To = target
	return s
}

// Branch adds a predicate routing rule. Expressions see the session context
// as `ctx` and the step's typed output as `output`; exactly one declared
// rule must match at run time.
func (s *StepBuilder) Branch(when, target string) *StepBuilder {
	s.step.Next.Rules = append(s.step.Next.Rules, domain.PredicateRule{When: when, To: target})
	return s
}

// Choose lets the model pick the next step from an allow-list. The choice
// field (default "next") is auto-declared as a string output when absent.
func (s *StepBuilder) Choose(targets ...string) *StepBuilder {
	s.step.Next.ChooseFrom = targets
	return s
}

// ChoiceKey renames the output field carrying the model-suggested target.
func (s *StepBuilder) ChoiceKey(field string) *StepBuilder {
	s.step.Next.ChoiceKey = field
	return s
}

// Retry overrides the engine-wide recovery policy for this step.
func (s *StepBuilder) Retry(p domain.RetryPolicy) *StepBuilder {
	s.step.Retry = &p
	return s
}

// Timeout bounds a single model call attempt.
func (s *StepBuilder) Timeout(d time.Duration) *StepBuilder {
	s.step.Timeout = d
	return s
}

func (s *StepBuilder) setField(field string, t schema.Type) {
	if s.fields == nil {
		s.fields = schema.Schema{}
	}
	s.fields[field] = t
}

func (s *StepBuilder) setVariant(v string) {
	if s.variant != "" && s.variant != v {
		s.fail(errors.New("mixes structured and extracted outputs"))
		return
	}
	s.variant = v
}

func (s *StepBuilder) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *StepBuilder) build() (domain.StepDefinition, error) {
	if s.err != nil {
		return s.step, fmt.Errorf("step %q: %w", s.step.ID, s.err)
	}
	if s.step.Kind == domain.StepTerminal {
		return s.step, nil
	}

	fields := s.fields
	if len(s.step.Next.ChooseFrom) > 0 {
		choice := s.step.Next.ChoiceField()
		if s.text != "" && s.text != choice {
			return s.step, fmt.Errorf("step %q: text binding %q cannot carry choice field %q", s.step.ID, s.text, choice)
		}
		if _, declared := fields[choice]; !declared {
			if fields == nil {
				fields = schema.Schema{}
			}
			fields[choice] = schema.String()
		}
	}

	switch {
	case len(fields) == 0:
		// No output declared; the registry reports it for step kinds that
		// require a contract.
	case s.variant == "value":
		s.step.Output = schema.Value(fields)
	case s.text != "":
		s.step.Output = schema.Text(s.text, fields[s.text])
	default:
		s.step.Output = &schema.ExtractionContract{Schema: fields, Paths: s.paths}
	}
	return s.step, nil
}
