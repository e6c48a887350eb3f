package guide_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/dsl"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

func surveyEngine(t *testing.T) *guide.Engine {
	t.Helper()

	b := dsl.New("survey")
	b.Input("age", "How old are you?").
		Returns("age", schema.Int()).
		Go("done")
	b.Terminal("done")
	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	eng, err := guide.New(guide.WithWorkflow(wf))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return eng
}

func TestRunnerDrivesSessionToCompletion(t *testing.T) {
	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader("42\n"), Output: &out}

	state, err := r.Run(context.Background(), eng, "s1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("got status %s, want completed", state.Status)
	}
	if state.Context["age"] != int64(42) {
		t.Errorf("input not coerced and merged: %v", state.Context["age"])
	}
	if !strings.Contains(out.String(), "How old are you?") {
		t.Errorf("prompt was never shown:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "> ") {
		t.Errorf("input marker missing:\n%s", out.String())
	}
}

func TestRunnerRepromptsOnRejectedInput(t *testing.T) {
	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader("old\n37\n"), Output: &out}

	state, err := r.Run(context.Background(), eng, "s1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("got status %s, want completed: %s", state.Status, state.Reason)
	}
	if state.Context["age"] != int64(37) {
		t.Errorf("second answer not merged: %v", state.Context["age"])
	}
	if got := strings.Count(out.String(), "How old are you?"); got != 2 {
		t.Errorf("prompt shown %d times, want 2:\n%s", got, out.String())
	}
}

func TestRunnerRepromptsOnOversizedInput(t *testing.T) {
	t.Setenv("GUIDE_MAX_INPUT_SIZE", "8")

	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader("123456789\n55\n"), Output: &out}

	state, err := r.Run(context.Background(), eng, "s1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("got status %s, want completed: %s", state.Status, state.Reason)
	}
	if state.Context["age"] != int64(55) {
		t.Errorf("second answer not merged: %v", state.Context["age"])
	}
	if !strings.Contains(out.String(), "input rejected") {
		t.Errorf("rejection was never reported:\n%s", out.String())
	}
}

func TestRunnerExitCancelsTheSession(t *testing.T) {
	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader("exit\n"), Output: &out}

	state, err := r.Run(context.Background(), eng, "s1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Status != domain.StatusCancelled {
		t.Errorf("got status %s, want cancelled", state.Status)
	}
}

func TestRunnerEOFCancelsTheSession(t *testing.T) {
	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader(""), Output: &out}

	state, err := r.Run(context.Background(), eng, "s1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Status != domain.StatusCancelled {
		t.Errorf("got status %s, want cancelled", state.Status)
	}
}

func TestRunnerRendererTransformsPrompts(t *testing.T) {
	eng := surveyEngine(t)
	var out bytes.Buffer
	r := &guide.Runner{
		Input:  strings.NewReader("42\n"),
		Output: &out,
		Renderer: func(s string) (string, error) {
			return ">> " + s + " <<", nil
		},
	}

	if _, err := r.Run(context.Background(), eng, "s1", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), ">> How old are you? <<") {
		t.Errorf("renderer not applied:\n%s", out.String())
	}
}

func TestRunnerContinuePicksUpASuspendedSession(t *testing.T) {
	eng := surveyEngine(t)
	ctx := context.Background()

	parked, err := eng.Start(ctx, "s1", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if parked.Status != domain.StatusSuspended {
		t.Fatalf("session should be parked, got %s", parked.Status)
	}

	var out bytes.Buffer
	r := &guide.Runner{Input: strings.NewReader("23\n"), Output: &out}
	state, err := r.Continue(ctx, eng, "s1")
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if state.Status != domain.StatusCompleted || state.Context["age"] != int64(23) {
		t.Errorf("got %s with %v, want completed with age 23", state.Status, state.Context["age"])
	}
}

func TestRunnerRequiresIO(t *testing.T) {
	eng := surveyEngine(t)
	r := &guide.Runner{}
	if _, err := r.Run(context.Background(), eng, "s1", nil); err == nil {
		t.Fatal("expected an error for missing IO")
	}
}
