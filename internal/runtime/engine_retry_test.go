package runtime_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/testutils"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/handler"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// askWorkflow is a single model step routing straight to a terminal. accept
// constrains the reply so tests can force validation failures.
func askWorkflow(accept schema.Type, retry *domain.RetryPolicy) *domain.Workflow {
	return &domain.Workflow{
		Name:    "ask",
		Version: "v1",
		Start:   "ask",
		Steps: []domain.StepDefinition{
			{
				ID:     "ask",
				Kind:   domain.StepModelDriven,
				Prompt: "Reply ok.",
				Output: schema.Text("reply", accept),
				Next:   domain.Transition{To: "done"},
				Retry:  retry,
			},
			{ID: "done", Kind: domain.StepTerminal},
		},
	}
}

func TestTransientRetriesFollowBackoff(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.String(), nil),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Reply("ok"),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s (reason %q)", state.Status, state.Reason)
	}

	want := []domain.Outcome{
		domain.OutcomeTransientFailure,
		domain.OutcomeTransientFailure,
		domain.OutcomeSuccess,
	}
	got := outcomes(state.History)
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected history %v, got %v", want, got)
	}

	// Exponential backoff from the 500ms default: 500ms, then 1s.
	sleeps := h.recordedSleeps()
	if len(sleeps) != 2 || sleeps[0] != 500*time.Millisecond || sleeps[1] != time.Second {
		t.Errorf("expected sleeps [500ms 1s], got %v", sleeps)
	}
}

func TestRetriesExhaustedFailSession(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.String(), nil),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Fail(domain.Transient("overloaded", nil)),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if len(state.History) != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", len(state.History))
	}
	if !strings.Contains(state.Reason, "overloaded") {
		t.Errorf("expected failure reason to carry the cause, got %q", state.Reason)
	}
}

func TestValidationRetryRefinesPrompt(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.Enum("ok"), nil),
		testutils.NewScriptedModel(
			testutils.Reply("nope"),
			testutils.Reply("ok"),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s (reason %q)", state.Status, state.Reason)
	}

	// Validation retries re-prompt immediately.
	if sleeps := h.recordedSleeps(); len(sleeps) != 0 {
		t.Errorf("expected no backoff sleeps, got %v", sleeps)
	}

	calls := h.model.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(calls))
	}
	if calls[0].Prompt != "Reply ok." {
		t.Errorf("first attempt must use the plain prompt, got %q", calls[0].Prompt)
	}
	if !strings.Contains(calls[1].Prompt, "Reply ok.") ||
		!strings.Contains(calls[1].Prompt, "rejected") ||
		!strings.Contains(calls[1].Prompt, `"nope"`) {
		t.Errorf("second attempt must carry the correction, got %q", calls[1].Prompt)
	}
	if calls[1].Attempt != 2 {
		t.Errorf("expected attempt 2 on second call, got %d", calls[1].Attempt)
	}
}

func TestCustomRefinerReplacesDefault(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.Enum("ok"), nil),
		testutils.NewScriptedModel(
			testutils.Reply("nope"),
			testutils.Reply("ok"),
		), nil,
		withRefiner(func(prompt, reason string, attempt int) string {
			return "try again"
		}))

	if _, err := h.engine.Start(context.Background(), "s1", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	calls := h.model.Calls()
	if len(calls) != 2 || calls[1].Prompt != "try again" {
		t.Fatalf("expected custom refined prompt, got %+v", calls)
	}
}

func TestValidationRetriesAreBounded(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.Enum("ok"), nil),
		testutils.NewScriptedModel(
			testutils.Reply("nope"),
			testutils.Reply("still nope"),
			testutils.Reply("never"),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed after exhausting validation retries, got %s", state.Status)
	}
	if len(state.History) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(state.History))
	}
	for i, r := range state.History {
		if r.Outcome != domain.OutcomeValidationFailure {
			t.Errorf("history[%d]: expected validation_failure, got %s", i, r.Outcome)
		}
	}
}

func TestStepRetryOverrideShrinksBudget(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.String(), &domain.RetryPolicy{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond}),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Fail(domain.Transient("overloaded", nil)),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if len(state.History) != 2 {
		t.Fatalf("expected the override to stop after 2 attempts, got %d", len(state.History))
	}
	sleeps := h.recordedSleeps()
	if len(sleeps) != 1 || sleeps[0] != 10*time.Millisecond {
		t.Errorf("expected one 10ms sleep, got %v", sleeps)
	}
}

func TestEngineWidePolicyApplies(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.String(), nil),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Transient("overloaded", nil)),
		), nil,
		withPolicy(domain.RetryPolicy{MaxAttempts: 1}))

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if len(state.History) != 1 {
		t.Fatalf("MaxAttempts 1 allows a single attempt, got %d", len(state.History))
	}
	if sleeps := h.recordedSleeps(); len(sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", sleeps)
	}
}

func TestFatalModelFailureStopsImmediately(t *testing.T) {
	h := newHarness(t, askWorkflow(schema.String(), nil),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Fatal("api key rejected", nil)),
		), nil)

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if len(state.History) != 1 {
		t.Fatalf("fatal failures must not retry, got %d attempts", len(state.History))
	}
	if sleeps := h.recordedSleeps(); len(sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", sleeps)
	}
}

func TestDeterministicValidationIsNeverRetried(t *testing.T) {
	wf := &domain.Workflow{
		Name:    "broken",
		Version: "v1",
		Start:   "emit",
		Steps: []domain.StepDefinition{
			{
				ID:      "emit",
				Kind:    domain.StepDeterministic,
				Handler: "emit",
				Output:  schema.Value(schema.Schema{"value": schema.Int()}),
				Next:    domain.Transition{To: "done"},
			},
			{ID: "done", Kind: domain.StepTerminal},
		},
	}
	calls := 0
	h := newHarness(t, wf, nil, map[string]handler.Func{
		"emit": func(context.Context, map[string]any) (any, error) {
			calls++
			return map[string]any{"value": "not an int"}, nil
		},
	})

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if calls != 1 {
		t.Fatalf("deterministic contract misses replay the same bytes; expected 1 call, got %d", calls)
	}
	if state.History[0].Outcome != domain.OutcomeValidationFailure {
		t.Errorf("expected validation_failure, got %s", state.History[0].Outcome)
	}
}

func TestInputContractViolationIsFatal(t *testing.T) {
	wf := askWorkflow(schema.String(), nil)
	wf.Steps[0].Input = schema.Schema{"topic": schema.String()}

	h := newHarness(t, wf, testutils.NewScriptedModel(testutils.Reply("ok")), nil)

	// No topic in the initial context: the step's precondition fails.
	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if len(state.History) != 1 || state.History[0].Outcome != domain.OutcomeFatalFailure {
		t.Fatalf("expected one fatal attempt, got %v", outcomes(state.History))
	}
	if len(h.model.Calls()) != 0 {
		t.Error("model must not be called when the input contract fails")
	}
	if !strings.Contains(state.Reason, "input contract") {
		t.Errorf("expected reason to name the input contract, got %q", state.Reason)
	}
}

func TestHandlerErrorsKeepTheirClass(t *testing.T) {
	wf := &domain.Workflow{
		Name:    "flaky",
		Version: "v1",
		Start:   "work",
		Steps: []domain.StepDefinition{
			{
				ID:      "work",
				Kind:    domain.StepDeterministic,
				Handler: "work",
				Output:  schema.Value(schema.Schema{"done": schema.Bool()}),
				Next:    domain.Transition{To: "done"},
			},
			{ID: "done", Kind: domain.StepTerminal},
		},
	}
	calls := 0
	h := newHarness(t, wf, nil, map[string]handler.Func{
		"work": func(context.Context, map[string]any) (any, error) {
			calls++
			if calls == 1 {
				return nil, domain.Transient("resource busy", errors.New("lock held"))
			}
			return map[string]any{"done": true}, nil
		},
	})

	state, err := h.engine.Start(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s (reason %q)", state.Status, state.Reason)
	}
	if calls != 2 {
		t.Fatalf("transient handler failure should retry, got %d calls", calls)
	}
	if state.History[0].Outcome != domain.OutcomeTransientFailure {
		t.Errorf("expected transient_failure, got %s", state.History[0].Outcome)
	}
}
