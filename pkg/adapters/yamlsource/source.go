// Package yamlsource loads a workflow from a single YAML (or JSON)
// document.
package yamlsource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rluijk/guided-llm-cli/internal/compiler"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Source implements ports.WorkflowSource over one workflow file.
type Source struct {
	Path string
}

// New creates a source reading from path.
func New(path string) *Source {
	return &Source{Path: path}
}

// Load reads and compiles the workflow document.
func (s *Source) Load(ctx context.Context) (*domain.Workflow, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data, filepath.Ext(s.Path))
}

// Parse compiles raw document bytes. ext selects the decoder (".json" for
// JSON, anything else is YAML).
func Parse(data []byte, ext string) (*domain.Workflow, error) {
	var doc compiler.WorkflowDoc

	if strings.ToLower(ext) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
		}
	}

	return doc.Compile()
}
