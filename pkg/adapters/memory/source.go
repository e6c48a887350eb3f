package memory

import (
	"context"
	"errors"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Source implements ports.WorkflowSource over a workflow built in code.
// It is the natural companion of the dsl package in tests and embedded use.
type Source struct {
	wf *domain.Workflow
}

// NewSource wraps an in-code workflow.
func NewSource(wf *domain.Workflow) *Source {
	return &Source{wf: wf}
}

// Load returns the wrapped workflow.
func (s *Source) Load(ctx context.Context) (*domain.Workflow, error) {
	if s.wf == nil {
		return nil, errors.New("memory source: no workflow configured")
	}
	return s.wf, nil
}
