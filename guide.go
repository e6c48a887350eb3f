package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/internal/runtime"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/exechandler"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/memory"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/handler"
	"github.com/rluijk/guided-llm-cli/pkg/model"
	"github.com/rluijk/guided-llm-cli/pkg/persistence/middleware"
	"github.com/rluijk/guided-llm-cli/pkg/policy"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
	"github.com/rluijk/guided-llm-cli/pkg/predicate"
	"github.com/rluijk/guided-llm-cli/pkg/registry"
	"github.com/rluijk/guided-llm-cli/pkg/session"
)

// Engine is the high-level entry point for the library. It wraps the
// internal runtime behind a validated workflow and wired adapters.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	store    ports.SessionStore
	logger   *slog.Logger

	// staged by options, consumed in New
	source       ports.WorkflowSource
	middleware   []middleware.Middleware
	locker       ports.DistributedLocker
	call         model.CallFunc
	classifier   model.Classifier
	modelTimeout time.Duration
	handlers     map[string]handler.Func
	policy       *domain.RetryPolicy
	hooks        domain.Hooks
	evaluator    predicate.Evaluator
	refiner      runtime.Refiner
	now          func() time.Time
	sleep        runtime.SleepFunc
}

// New validates the workflow and wires the engine. It fails when no
// workflow is configured, when the workflow has definition problems, and
// when a deterministic step has neither a registered handler nor an exec
// command to back it.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		handlers: make(map[string]handler.Func),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	if e.source == nil {
		return nil, errors.New("a workflow is required: use WithWorkflow or WithSource")
	}
	wf, err := e.source.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}

	reg, err := registry.Load(wf)
	if err != nil {
		return nil, err
	}
	e.registry = reg

	handlers, err := e.buildHandlers(reg)
	if err != nil {
		return nil, err
	}

	store := e.store
	if store == nil {
		store = memory.NewStore()
	}
	if len(e.middleware) > 0 {
		store = middleware.Chain(store, e.middleware...)
	}
	e.store = store

	sessOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}

	modelOpts := []model.Option{model.WithLogger(e.logger)}
	if e.modelTimeout > 0 {
		modelOpts = append(modelOpts, model.WithTimeout(e.modelTimeout))
	}
	if e.classifier != nil {
		modelOpts = append(modelOpts, model.WithClassifier(e.classifier))
	}

	var table *policy.Table
	if e.policy != nil {
		table = policy.NewTable(*e.policy)
	}

	e.runtime = runtime.New(runtime.Config{
		Registry:  reg,
		Handlers:  handlers,
		Model:     model.New(e.call, modelOpts...),
		Sessions:  session.NewManager(store, sessOpts...),
		Policy:    table,
		Evaluator: e.evaluator,
		Refiner:   e.refiner,
		Hooks:     e.hooks,
		Logger:    e.logger.With("workflow", wf.Name),
		Sleep:     e.sleep,
		Now:       e.now,
	})
	return e, nil
}

// buildHandlers merges explicitly registered handlers with exec-backed ones
// and verifies every deterministic step is covered. Registered handlers win
// over exec commands of the same name, so tests can stub out subprocesses.
func (e *Engine) buildHandlers(reg *registry.Registry) (*handler.Registry, error) {
	handlers := handler.NewRegistry()
	for name, fn := range e.handlers {
		handlers.Register(name, fn)
	}

	for _, step := range reg.Steps() {
		if step.Kind != domain.StepDeterministic {
			continue
		}
		name := step.Handler
		if name == "" {
			name = step.ID
		}
		if handlers.Registered(name) {
			continue
		}
		if len(step.Exec) > 0 {
			fn, err := exechandler.New(step.Exec)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", step.ID, err)
			}
			handlers.Register(name, fn)
			continue
		}
		return nil, fmt.Errorf("deterministic step %q needs handler %q registered or an exec command", step.ID, name)
	}
	return handlers, nil
}

// Start creates a new session and drives it until it parks: suspended on a
// user-input step or at a terminal status. An empty id generates one.
func (e *Engine) Start(ctx context.Context, id string, initial map[string]any) (*domain.SessionState, error) {
	return e.runtime.Start(ctx, id, initial)
}

// Resume continues a persisted session from its current step, optionally
// feeding user input to a suspended one. Resuming a terminal session
// returns domain.ErrSessionTerminal.
func (e *Engine) Resume(ctx context.Context, id string, input any) (*domain.SessionState, error) {
	return e.runtime.Resume(ctx, id, input)
}

// Status returns the persisted snapshot of a session without running it.
func (e *Engine) Status(ctx context.Context, id string) (*domain.SessionState, error) {
	return e.runtime.Status(ctx, id)
}

// Cancel flips a parked session to Cancelled. Terminal sessions are final.
func (e *Engine) Cancel(ctx context.Context, id string) (*domain.SessionState, error) {
	return e.runtime.Cancel(ctx, id)
}

// Sessions lists the ids of persisted sessions.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.runtime.Sessions(ctx)
}

// Workflow returns the validated workflow definition.
func (e *Engine) Workflow() *domain.Workflow {
	return e.registry.Workflow()
}

// Store returns the composed session store, middleware included. Callers
// use it for maintenance operations the engine does not own, like deleting
// sessions.
func (e *Engine) Store() ports.SessionStore {
	return e.store
}
