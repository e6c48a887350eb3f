// Package runtime drives sessions through their workflow: it executes the
// current step, validates output against the step's contract, consults the
// recovery policy on failure, and persists every committed transition before
// advancing. A crash between persist and advance re-executes at most the
// persisted current step, so step execution is at-least-once.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/handler"
	"github.com/rluijk/guided-llm-cli/pkg/model"
	"github.com/rluijk/guided-llm-cli/pkg/policy"
	"github.com/rluijk/guided-llm-cli/pkg/predicate"
	"github.com/rluijk/guided-llm-cli/pkg/registry"
	"github.com/rluijk/guided-llm-cli/pkg/session"
)

const reasonCancelled = "cancelled"

// SleepFunc waits for the given duration or until the context is cancelled.
// Injectable so retry backoff is testable without wall-clock time.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config carries the engine's collaborators. Registry and Sessions are
// required; everything else has a working default.
type Config struct {
	Registry  *registry.Registry
	Handlers  *handler.Registry
	Model     *model.Adapter
	Sessions  *session.Manager
	Policy    *policy.Table
	Evaluator predicate.Evaluator
	Refiner   Refiner
	Hooks     domain.Hooks
	Logger    *slog.Logger

	// Test seams.
	Sleep SleepFunc
	Now   func() time.Time
	NewID func() string
}

// Engine executes sessions one step at a time. Safe for concurrent use
// across distinct session ids; concurrent runs of the same id are refused
// with ErrSessionBusy.
type Engine struct {
	registry  *registry.Registry
	handlers  *handler.Registry
	model     *model.Adapter
	sessions  *session.Manager
	policy    *policy.Table
	evaluator predicate.Evaluator
	refiner   Refiner
	hooks     domain.Hooks
	logger    *slog.Logger

	sleep SleepFunc
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	active map[string]bool
}

// New builds an engine, filling defaults for absent collaborators.
func New(cfg Config) *Engine {
	e := &Engine{
		registry:  cfg.Registry,
		handlers:  cfg.Handlers,
		model:     cfg.Model,
		sessions:  cfg.Sessions,
		policy:    cfg.Policy,
		evaluator: cfg.Evaluator,
		refiner:   cfg.Refiner,
		hooks:     cfg.Hooks,
		logger:    cfg.Logger,
		sleep:     cfg.Sleep,
		now:       cfg.Now,
		newID:     cfg.NewID,
		active:    make(map[string]bool),
	}
	if e.handlers == nil {
		e.handlers = handler.NewRegistry()
	}
	if e.model == nil {
		e.model = model.New(nil)
	}
	if e.policy == nil {
		e.policy = policy.NewTable(domain.RetryPolicy{})
	}
	if e.evaluator == nil {
		e.evaluator = predicate.NewLua()
	}
	if e.refiner == nil {
		e.refiner = DefaultRefiner
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Workflow returns the definition the engine runs.
func (e *Engine) Workflow() *domain.Workflow {
	return e.registry.Workflow()
}

// Start creates a session and drives it until it parks or finishes. An empty
// id gets a generated one. The initial context is merged before the first
// step runs. The fresh session is persisted before any step executes, so the
// id is reserved even if the first step crashes the process.
func (e *Engine) Start(ctx context.Context, id string, initial map[string]any) (*domain.SessionState, error) {
	if id == "" {
		id = e.newID()
	}
	if err := e.claim(id); err != nil {
		return nil, err
	}
	defer e.unclaim(id)

	state := domain.NewSession(id, e.registry.Workflow(), e.now())
	for k, v := range initial {
		state.Context[k] = v
	}
	if err := e.sessions.Create(ctx, state); err != nil {
		return nil, err
	}

	e.logger.Info("session started",
		"session", state.ID, "workflow", state.Workflow, "step", state.Current)
	e.emitSessionStart(ctx, state)

	return e.run(ctx, state, nil)
}

// Resume loads a persisted session and re-enters the loop at its current
// step. input satisfies a suspended input step; resuming a suspended session
// without input is ErrInputRequired. Sessions started under a different
// workflow name or version are refused with ErrWorkflowMismatch, finished
// ones with ErrSessionTerminal.
func (e *Engine) Resume(ctx context.Context, id string, input any) (*domain.SessionState, error) {
	if err := e.claim(id); err != nil {
		return nil, err
	}
	defer e.unclaim(id)

	state, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	wf := e.registry.Workflow()
	if state.Workflow != wf.Name || state.WorkflowVersion != wf.Version {
		return nil, fmt.Errorf("%w: session %s was started under %s/%s, engine runs %s/%s",
			domain.ErrWorkflowMismatch, id,
			state.Workflow, state.WorkflowVersion, wf.Name, wf.Version)
	}
	if state.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrSessionTerminal, id, state.Status)
	}
	if state.Status == domain.StatusSuspended && input == nil {
		return nil, fmt.Errorf("%w: session %s is waiting at step %s",
			domain.ErrInputRequired, id, state.Current)
	}

	state.Status = domain.StatusRunning
	state.Awaiting = ""

	e.logger.Info("session resumed", "session", state.ID, "step", state.Current)
	return e.run(ctx, state, input)
}

// Status returns the persisted snapshot of a session.
func (e *Engine) Status(ctx context.Context, id string) (*domain.SessionState, error) {
	return e.sessions.Get(ctx, id)
}

// Sessions lists all persisted session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Cancel flips a parked session to Cancelled. Finished sessions are final
// (ErrSessionTerminal); a session with a live run must be stopped through
// its context and is refused with ErrSessionBusy.
func (e *Engine) Cancel(ctx context.Context, id string) (*domain.SessionState, error) {
	e.mu.Lock()
	busy := e.active[id]
	e.mu.Unlock()
	if busy {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionBusy, id)
	}

	var out *domain.SessionState
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		state, err := e.sessions.Store().Load(ctx, id)
		if err != nil {
			return err
		}
		if state.Terminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrSessionTerminal, id, state.Status)
		}
		state.Status = domain.StatusCancelled
		state.Reason = reasonCancelled
		state.Awaiting = ""
		state.UpdatedAt = e.now()
		if err := e.sessions.Store().Save(ctx, state); err != nil {
			return err
		}
		out = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("session cancelled", "session", id)
	e.emitSessionEnd(ctx, out)
	return out, nil
}

// claim marks a session as having a live run in this process. The local
// guard complements the distributed lock: it refuses overlapping runs
// instead of queueing them.
func (e *Engine) claim(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[id] {
		return fmt.Errorf("%w: %s", domain.ErrSessionBusy, id)
	}
	e.active[id] = true
	return nil
}

func (e *Engine) unclaim(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, id)
}

func (e *Engine) emitSessionStart(ctx context.Context, state *domain.SessionState) {
	if e.hooks.OnSessionStart == nil {
		return
	}
	e.hooks.OnSessionStart(ctx, &domain.SessionEvent{
		At: e.now(), Session: state.ID, Workflow: state.Workflow, Status: state.Status,
	})
}

func (e *Engine) emitSessionEnd(ctx context.Context, state *domain.SessionState) {
	if e.hooks.OnSessionEnd == nil {
		return
	}
	e.hooks.OnSessionEnd(ctx, &domain.SessionEvent{
		At: e.now(), Session: state.ID, Workflow: state.Workflow, Status: state.Status,
	})
}

func (e *Engine) emitStepStart(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition, attempt int) {
	if e.hooks.OnStepStart == nil {
		return
	}
	e.hooks.OnStepStart(ctx, &domain.StepEvent{
		At: e.now(), Session: state.ID, Step: step.ID, Kind: step.Kind, Attempt: attempt,
	})
}

func (e *Engine) emitStepEnd(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition, res *domain.StepResult) {
	if e.hooks.OnStepEnd == nil {
		return
	}
	ev := &domain.StepEvent{
		At: e.now(), Session: state.ID, Step: res.Step, Attempt: res.Attempt, Result: res,
	}
	if step != nil {
		ev.Kind = step.Kind
	}
	e.hooks.OnStepEnd(ctx, ev)
}

func (e *Engine) emitRetry(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition, attempt int, delay time.Duration) {
	if e.hooks.OnRetry == nil {
		return
	}
	e.hooks.OnRetry(ctx, &domain.RetryEvent{
		At: e.now(), Session: state.ID, Step: step.ID, Attempt: attempt, Delay: delay,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
