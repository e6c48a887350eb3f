// Package loamsource loads a workflow from a directory of markdown files
// managed by Loam: one file per step, frontmatter carrying the step
// document, the markdown body doubling as the prompt. Workflow metadata
// (name, version, start) lives in workflow.md.
package loamsource

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"

	"github.com/rluijk/guided-llm-cli/internal/compiler"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// headerID is the document holding workflow metadata instead of a step.
const headerID = "workflow"

// Doc is the frontmatter shape of every document in the directory. Step
// files use the embedded step fields; workflow.md uses the header fields.
type Doc struct {
	compiler.StepDoc `mapstructure:",squash"`

	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Start   string `mapstructure:"start"`
}

// Source implements ports.WorkflowSource over a Loam repository.
type Source struct {
	repo *loam.TypedRepository[Doc]
}

// New opens the directory as a read-only Loam repository.
// Strict mode keeps numeric frontmatter types consistent across adapters.
func New(dir string) (*Source, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return NewFromRepository(repo), nil
}

// NewFromRepository wraps an existing Loam repository (tests, embedding).
func NewFromRepository(repo core.Repository) *Source {
	return &Source{repo: loam.NewTypedRepository[Doc](repo)}
}

// Load assembles the workflow from all step documents plus the header.
func (s *Source) Load(ctx context.Context) (*domain.Workflow, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	wf := &domain.Workflow{}
	sawHeader := false

	for _, doc := range docs {
		id := trimExtension(doc.ID)

		if id == headerID {
			wf.Name = doc.Data.Name
			wf.Version = doc.Data.Version
			wf.Start = doc.Data.Start
			sawHeader = true
			continue
		}

		sd := doc.Data.StepDoc
		if sd.ID == "" {
			sd.ID = id
		}
		// The markdown body is the prompt unless frontmatter says otherwise.
		if sd.Prompt == "" {
			sd.Prompt = strings.TrimSpace(doc.Content)
		}

		step, err := sd.Compile()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.ID, err)
		}
		wf.Steps = append(wf.Steps, *step)
	}

	if !sawHeader {
		return nil, fmt.Errorf("workflow.md not found: every workflow directory needs a header document")
	}
	return wf, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
