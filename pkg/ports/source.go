package ports

import (
	"context"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// WorkflowSource loads a workflow definition from its backing document
// format. Sources only decode; structural validation happens when the
// result is handed to the registry.
type WorkflowSource interface {
	Load(ctx context.Context) (*domain.Workflow, error)
}
