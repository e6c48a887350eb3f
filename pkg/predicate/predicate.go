// Package predicate evaluates transition rule expressions against a step's
// output and the session context.
package predicate

import "context"

// Evaluator decides whether a transition rule matches. The env maps binding
// names to values; workflow rules see a "ctx" table for accumulated session
// context and an "output" table for the fields the step just produced.
// Implementations must be safe for concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, env map[string]any) (bool, error)
}
