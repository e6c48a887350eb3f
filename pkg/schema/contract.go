package schema

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Contract describes the acceptable shape of a step's output and turns raw
// output into typed fields for the session context. A violation is always a
// *ValidationError or *AggregateError, never a panic: well-formed output
// that misses the contract is recoverable, not a crash.
type Contract interface {
	// Kind tags the variant: "value" or "extraction".
	Kind() string
	// Fields returns the declared output fields.
	Fields() Schema
	// Validate checks raw output and returns the typed fields to merge
	// into the session context.
	Validate(raw any) (map[string]any, error)
}

// ValueContract validates output that is already structured Go data, as
// produced by deterministic handlers and user input.
type ValueContract struct {
	Schema Schema
}

// Value builds a contract over structured output.
func Value(fields Schema) *ValueContract {
	return &ValueContract{Schema: fields}
}

func (c *ValueContract) Kind() string   { return "value" }
func (c *ValueContract) Fields() Schema { return c.Schema }

func (c *ValueContract) Validate(raw any) (map[string]any, error) {
	data, ok := raw.(map[string]any)
	if !ok {
		// A single-field contract accepts the bare value.
		if len(c.Schema) == 1 {
			for name := range c.Schema {
				data = map[string]any{name: raw}
			}
		} else {
			return nil, &ValidationError{
				Key:    "",
				Reason: fmt.Sprintf("expected map output, got %T", raw),
				Value:  raw,
			}
		}
	}

	if err := Validate(c.Schema, data); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(c.Schema))
	for name := range c.Schema {
		out[name] = data[name]
	}
	return out, nil
}

// ExtractionContract validates raw model output text. When TextField is set
// the trimmed text itself is the value of that single field; otherwise the
// text must be JSON (a fenced ```json block is tolerated) and each field is
// pulled by its gjson path.
type ExtractionContract struct {
	Schema Schema
	// Paths maps fields to gjson paths. A field without an entry uses its
	// own name as the path.
	Paths map[string]string
	// TextField, when set, names the single field that receives the whole
	// trimmed output.
	TextField string
}

// Text builds a contract that binds the whole trimmed model reply to one
// typed field.
func Text(field string, t Type) *ExtractionContract {
	return &ExtractionContract{
		Schema:    Schema{field: t},
		TextField: field,
	}
}

// Extraction builds a contract that pulls typed fields out of a JSON reply.
func Extraction(fields Schema) *ExtractionContract {
	return &ExtractionContract{Schema: fields}
}

func (c *ExtractionContract) Kind() string   { return "extraction" }
func (c *ExtractionContract) Fields() Schema { return c.Schema }

func (c *ExtractionContract) Validate(raw any) (map[string]any, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, &ValidationError{
			Key:    "",
			Reason: fmt.Sprintf("expected model output text, got %T", raw),
			Value:  raw,
		}
	}
	text = stripFence(strings.TrimSpace(text))

	if c.TextField != "" {
		t := c.Schema[c.TextField]
		if t == nil {
			return nil, &ValidationError{Key: c.TextField, Reason: "not declared in contract"}
		}
		if err := t.Validate(text); err != nil {
			return nil, &ValidationError{Key: c.TextField, Reason: err.Error(), Value: text}
		}
		return map[string]any{c.TextField: text}, nil
	}

	if !gjson.Valid(text) {
		return nil, &ValidationError{Key: "", Reason: "output is not valid JSON", Value: text}
	}

	var errs []error
	out := make(map[string]any, len(c.Schema))
	for name, t := range c.Schema {
		path := name
		if p, exists := c.Paths[name]; exists {
			path = p
		}
		res := gjson.Get(text, path)
		if !res.Exists() {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			continue
		}
		value := res.Value()
		if err := t.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
			continue
		}
		out[name] = value
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

// stripFence removes a surrounding markdown code fence. Models often wrap
// JSON replies in ```json blocks even when told not to.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body, found := strings.CutPrefix(s, "```")
	if !found {
		return s
	}
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
