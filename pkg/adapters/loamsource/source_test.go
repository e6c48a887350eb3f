package loamsource_test

import (
	"context"
	"testing"

	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rluijk/guided-llm-cli/internal/testutils"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/loamsource"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

func seed(t *testing.T, repo core.Repository, docs map[string]string) {
	t.Helper()
	ctx := context.Background()
	for id, content := range docs {
		require.NoError(t, repo.Save(ctx, core.Document{ID: id, Content: content}))
	}
}

func TestLoadWorkflowDirectory(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)

	seed(t, repo, map[string]string{
		"workflow.md": `---
name: triage
version: "3"
start: classify
---
Ticket triage workflow.`,
		"classify.md": `---
kind: model
output:
  fields:
    next: enum(close|escalate)
next:
  choose_from: [close, escalate]
---
Classify the ticket: ${summary}`,
		"close.md": `---
kind: terminal
---`,
		"escalate.md": `---
kind: terminal
---`,
	})

	src := loamsource.NewFromRepository(repo)
	wf, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "triage", wf.Name)
	assert.Equal(t, "3", wf.Version)
	assert.Equal(t, "classify", wf.Start)
	assert.Len(t, wf.Steps, 3)

	classify := wf.Step("classify")
	require.NotNil(t, classify)
	assert.Equal(t, domain.StepModelDriven, classify.Kind)
	assert.Equal(t, "Classify the ticket: ${summary}", classify.Prompt,
		"markdown body should become the prompt")
	assert.Equal(t, domain.TransitionChoice, classify.Next.Kind())
	assert.ElementsMatch(t, []string{"close", "escalate"}, classify.Next.ChooseFrom)
}

func TestFrontmatterIDOverridesFilename(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)

	seed(t, repo, map[string]string{
		"workflow.md": `---
name: wf
version: "1"
start: renamed
---`,
		"original.md": `---
id: renamed
kind: terminal
---`,
	})

	wf, err := loamsource.NewFromRepository(repo).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, wf.Step("renamed"))
	assert.Nil(t, wf.Step("original"))
}

func TestMissingHeaderDocument(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)

	seed(t, repo, map[string]string{
		"done.md": `---
kind: terminal
---`,
	})

	_, err := loamsource.NewFromRepository(repo).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.md")
}

func TestMalformedStepReportsDocument(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)

	seed(t, repo, map[string]string{
		"workflow.md": `---
name: wf
version: "1"
start: bad
---`,
		"bad.md": `---
kind: spiral
---`,
	})

	_, err := loamsource.NewFromRepository(repo).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Contains(t, err.Error(), "unknown step kind")
}
