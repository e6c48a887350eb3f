package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/testutils"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

type hookRecorder struct {
	mu       sync.Mutex
	started  []domain.SessionEvent
	ended    []domain.SessionEvent
	stepGo   []domain.StepEvent
	stepDone []domain.StepEvent
	retries  []domain.RetryEvent
}

func (r *hookRecorder) hooks() domain.Hooks {
	return domain.Hooks{
		OnSessionStart: func(_ context.Context, ev *domain.SessionEvent) {
			r.mu.Lock()
			r.started = append(r.started, *ev)
			r.mu.Unlock()
		},
		OnSessionEnd: func(_ context.Context, ev *domain.SessionEvent) {
			r.mu.Lock()
			r.ended = append(r.ended, *ev)
			r.mu.Unlock()
		},
		OnStepStart: func(_ context.Context, ev *domain.StepEvent) {
			r.mu.Lock()
			r.stepGo = append(r.stepGo, *ev)
			r.mu.Unlock()
		},
		OnStepEnd: func(_ context.Context, ev *domain.StepEvent) {
			r.mu.Lock()
			r.stepDone = append(r.stepDone, *ev)
			r.mu.Unlock()
		},
		OnRetry: func(_ context.Context, ev *domain.RetryEvent) {
			r.mu.Lock()
			r.retries = append(r.retries, *ev)
			r.mu.Unlock()
		},
	}
}

func TestHooksObserveTheWholeLifecycle(t *testing.T) {
	rec := &hookRecorder{}
	h := newHarness(t, askWorkflow(schema.String(), nil),
		testutils.NewScriptedModel(
			testutils.Fail(domain.Transient("overloaded", nil)),
			testutils.Reply("ok"),
		), nil,
		withHooks(rec.hooks()))

	if _, err := h.engine.Start(context.Background(), "s1", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(rec.started) != 1 || rec.started[0].Status != domain.StatusRunning {
		t.Errorf("expected one session start event, got %+v", rec.started)
	}
	if len(rec.ended) != 1 || rec.ended[0].Status != domain.StatusCompleted {
		t.Errorf("expected one completed session end event, got %+v", rec.ended)
	}

	if len(rec.stepGo) != 2 {
		t.Fatalf("expected 2 step start events, got %d", len(rec.stepGo))
	}
	for i, ev := range rec.stepGo {
		if ev.Result != nil {
			t.Errorf("step start %d must carry no result", i)
		}
		if ev.Attempt != i+1 {
			t.Errorf("step start %d: expected attempt %d, got %d", i, i+1, ev.Attempt)
		}
	}

	if len(rec.stepDone) != 2 {
		t.Fatalf("expected 2 step end events, got %d", len(rec.stepDone))
	}
	if rec.stepDone[0].Result == nil || rec.stepDone[0].Result.Outcome != domain.OutcomeTransientFailure {
		t.Errorf("first step end must carry the failure, got %+v", rec.stepDone[0].Result)
	}
	if rec.stepDone[1].Result == nil || rec.stepDone[1].Result.Outcome != domain.OutcomeSuccess {
		t.Errorf("second step end must carry the success, got %+v", rec.stepDone[1].Result)
	}

	if len(rec.retries) != 1 {
		t.Fatalf("expected 1 retry event, got %d", len(rec.retries))
	}
	if rec.retries[0].Delay != 500*time.Millisecond || rec.retries[0].Attempt != 1 {
		t.Errorf("unexpected retry event %+v", rec.retries[0])
	}
}

func TestSuspensionEmitsNoSessionEnd(t *testing.T) {
	rec := &hookRecorder{}
	h := newHarness(t, inputWorkflow(), nil, nil, withHooks(rec.hooks()))

	if _, err := h.engine.Start(context.Background(), "s1", map[string]any{"name": "sam"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(rec.ended) != 0 {
		t.Errorf("a parked session has not ended, got %+v", rec.ended)
	}
	if len(rec.stepGo) != 0 || len(rec.stepDone) != 0 {
		t.Errorf("suspension is not an attempt: %d starts, %d ends", len(rec.stepGo), len(rec.stepDone))
	}
}
