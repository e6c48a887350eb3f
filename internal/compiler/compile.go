// Package compiler turns raw workflow documents into domain definitions.
// It is the shared backend of the yamlsource and loamsource adapters: both
// decode text into the Doc types here and call Compile.
package compiler

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// WorkflowDoc is the document form of a whole workflow.
type WorkflowDoc struct {
	Name    string    `yaml:"name" json:"name" mapstructure:"name"`
	Version string    `yaml:"version" json:"version" mapstructure:"version"`
	Start   string    `yaml:"start" json:"start" mapstructure:"start"`
	Steps   []StepDoc `yaml:"steps" json:"steps" mapstructure:"steps"`
}

// StepDoc is the document form of a single step. Field names match the
// frontmatter/YAML keys authors write.
type StepDoc struct {
	ID      string            `yaml:"id" json:"id" mapstructure:"id"`
	Kind    string            `yaml:"kind" json:"kind" mapstructure:"kind"`
	Prompt  string            `yaml:"prompt" json:"prompt" mapstructure:"prompt"`
	Handler string            `yaml:"handler" json:"handler" mapstructure:"handler"`
	Exec    []string          `yaml:"exec" json:"exec" mapstructure:"exec"`
	Input   map[string]string `yaml:"input" json:"input" mapstructure:"input"`
	Output  *ContractDoc      `yaml:"output" json:"output" mapstructure:"output"`
	Next    *TransitionDoc    `yaml:"next" json:"next" mapstructure:"next"`
	Retry   *RetryDoc         `yaml:"retry" json:"retry" mapstructure:"retry"`
	Timeout string            `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// ContractDoc declares an output contract. Kind defaults by step kind:
// model steps extract from reply text, everything else validates structured
// values.
type ContractDoc struct {
	Kind      string            `yaml:"kind" json:"kind" mapstructure:"kind"`
	Fields    map[string]string `yaml:"fields" json:"fields" mapstructure:"fields"`
	Paths     map[string]string `yaml:"paths" json:"paths" mapstructure:"paths"`
	TextField string            `yaml:"text_field" json:"text_field" mapstructure:"text_field"`
}

// TransitionDoc declares where a step routes on success.
type TransitionDoc struct {
	To         string    `yaml:"to" json:"to" mapstructure:"to"`
	Rules      []RuleDoc `yaml:"rules" json:"rules" mapstructure:"rules"`
	ChooseFrom []string  `yaml:"choose_from" json:"choose_from" mapstructure:"choose_from"`
	ChoiceKey  string    `yaml:"choice_key" json:"choice_key" mapstructure:"choice_key"`
}

// RuleDoc is one predicate routing rule.
type RuleDoc struct {
	When string `yaml:"when" json:"when" mapstructure:"when"`
	To   string `yaml:"to" json:"to" mapstructure:"to"`
}

// RetryDoc overrides the recovery policy for one step. Durations are
// time.ParseDuration strings ("500ms", "10s").
type RetryDoc struct {
	MaxAttempts           int    `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
	ValidationMaxAttempts int    `yaml:"validation_max_attempts" json:"validation_max_attempts" mapstructure:"validation_max_attempts"`
	Backoff               string `yaml:"backoff" json:"backoff" mapstructure:"backoff"`
	BaseDelay             string `yaml:"base_delay" json:"base_delay" mapstructure:"base_delay"`
	MaxDelay              string `yaml:"max_delay" json:"max_delay" mapstructure:"max_delay"`
}

// Compile converts the document into a domain workflow. Structural rules
// (unique ids, resolvable targets, reachability) are the registry's job;
// Compile only rejects documents it cannot express as definitions.
func (d WorkflowDoc) Compile() (*domain.Workflow, error) {
	wf := &domain.Workflow{
		Name:    d.Name,
		Version: d.Version,
		Start:   d.Start,
		Steps:   make([]domain.StepDefinition, 0, len(d.Steps)),
	}
	for i, sd := range d.Steps {
		step, err := sd.Compile()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		wf.Steps = append(wf.Steps, *step)
	}
	return wf, nil
}

// Compile converts one step document into a definition.
func (d StepDoc) Compile() (*domain.StepDefinition, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("step missing id")
	}

	kind, err := parseKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", d.ID, err)
	}

	step := &domain.StepDefinition{
		ID:      d.ID,
		Kind:    kind,
		Prompt:  d.Prompt,
		Handler: d.Handler,
		Exec:    d.Exec,
	}

	if len(d.Input) > 0 {
		input, err := schema.ParseTypeMap(d.Input)
		if err != nil {
			return nil, fmt.Errorf("step %q: input: %w", d.ID, err)
		}
		step.Input = input
	}

	if d.Output != nil {
		contract, err := d.Output.compile(kind)
		if err != nil {
			return nil, fmt.Errorf("step %q: output: %w", d.ID, err)
		}
		step.Output = contract
	}

	if d.Next != nil {
		step.Next = domain.Transition{
			To:         d.Next.To,
			ChooseFrom: d.Next.ChooseFrom,
			ChoiceKey:  d.Next.ChoiceKey,
		}
		for _, r := range d.Next.Rules {
			step.Next.Rules = append(step.Next.Rules, domain.PredicateRule{When: r.When, To: r.To})
		}
	}

	if d.Retry != nil {
		retry, err := d.Retry.compile()
		if err != nil {
			return nil, fmt.Errorf("step %q: retry: %w", d.ID, err)
		}
		step.Retry = retry
	}

	if d.Timeout != "" {
		timeout, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return nil, fmt.Errorf("step %q: timeout: %w", d.ID, err)
		}
		step.Timeout = timeout
	}

	return step, nil
}

func parseKind(s string) (domain.StepKind, error) {
	switch domain.StepKind(s) {
	case domain.StepDeterministic, domain.StepModelDriven, domain.StepUserInput, domain.StepTerminal:
		return domain.StepKind(s), nil
	case "":
		return "", fmt.Errorf("step missing kind")
	default:
		return "", fmt.Errorf("unknown step kind %q", s)
	}
}

func (d ContractDoc) compile(stepKind domain.StepKind) (schema.Contract, error) {
	fields, err := schema.ParseTypeMap(d.Fields)
	if err != nil {
		return nil, err
	}

	kind := d.Kind
	if kind == "" {
		if stepKind == domain.StepModelDriven {
			kind = "extraction"
		} else {
			kind = "value"
		}
	}

	switch kind {
	case "value":
		if d.TextField != "" || len(d.Paths) > 0 {
			return nil, fmt.Errorf("text_field and paths only apply to extraction contracts")
		}
		return schema.Value(fields), nil
	case "extraction":
		if d.TextField != "" {
			if len(fields) != 1 {
				return nil, fmt.Errorf("text_field requires exactly one declared field")
			}
			t, ok := fields[d.TextField]
			if !ok {
				return nil, fmt.Errorf("text_field %q is not a declared field", d.TextField)
			}
			return schema.Text(d.TextField, t), nil
		}
		c := schema.Extraction(fields)
		c.Paths = d.Paths
		return c, nil
	default:
		return nil, fmt.Errorf("unknown contract kind %q", kind)
	}
}

func (d RetryDoc) compile() (*domain.RetryPolicy, error) {
	p := &domain.RetryPolicy{
		MaxAttempts:           d.MaxAttempts,
		ValidationMaxAttempts: d.ValidationMaxAttempts,
	}

	switch domain.BackoffKind(d.Backoff) {
	case "", domain.BackoffFixed, domain.BackoffLinear, domain.BackoffExponential:
		p.Backoff = domain.BackoffKind(d.Backoff)
	default:
		return nil, fmt.Errorf("unknown backoff %q", d.Backoff)
	}

	if d.BaseDelay != "" {
		base, err := time.ParseDuration(d.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("base_delay: %w", err)
		}
		p.BaseDelay = base
	}
	if d.MaxDelay != "" {
		max, err := time.ParseDuration(d.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("max_delay: %w", err)
		}
		p.MaxDelay = max
	}
	return p, nil
}

// DecodeStep decodes a raw map (frontmatter, JSON) into a step document and
// compiles it.
func DecodeStep(raw map[string]any) (*domain.StepDefinition, error) {
	var doc StepDoc
	if err := mapstructure.Decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode step document: %w", err)
	}
	return doc.Compile()
}
