package guide

import (
	"log/slog"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/runtime"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/memory"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/handler"
	"github.com/rluijk/guided-llm-cli/pkg/model"
	"github.com/rluijk/guided-llm-cli/pkg/persistence/middleware"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
	"github.com/rluijk/guided-llm-cli/pkg/predicate"
)

// Option configures the Engine.
type Option func(*Engine)

// WithWorkflow uses an in-code workflow, typically built with the dsl
// package. The last of WithWorkflow/WithSource wins.
func WithWorkflow(wf *domain.Workflow) Option {
	return func(e *Engine) {
		e.source = memory.NewSource(wf)
	}
}

// WithSource loads the workflow from a document source (YAML file, loam
// directory) during New.
func WithSource(src ports.WorkflowSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithStore sets the session store. Defaults to an in-memory store, which
// does not survive the process; CLI and service deployments should install
// the file or redis adapter.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithStoreMiddleware wraps the session store, innermost first. Repeated
// calls append.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middleware = append(e.middleware, mws...)
	}
}

// WithLocker enables distributed session locking for multi-replica
// deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithModel injects the model capability invoked by model-driven steps.
// Engines without one fail model steps fatally at run time.
func WithModel(call model.CallFunc) Option {
	return func(e *Engine) {
		e.call = call
	}
}

// WithClassifier sets the failure classifier applied to model transport
// errors.
func WithClassifier(c model.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithModelTimeout bounds a single model call attempt unless the step
// declares its own timeout.
func WithModelTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.modelTimeout = d
	}
}

// WithHandler registers a deterministic step implementation under name.
func WithHandler(name string, fn handler.Func) Option {
	return func(e *Engine) {
		e.handlers[name] = fn
	}
}

// WithHandlers registers a batch of deterministic step implementations.
func WithHandlers(fns map[string]handler.Func) Option {
	return func(e *Engine) {
		for name, fn := range fns {
			e.handlers[name] = fn
		}
	}
}

// WithPolicy sets the engine-wide recovery policy. Zero fields fall back to
// the defaults; steps may still override per step.
func WithPolicy(p domain.RetryPolicy) Option {
	return func(e *Engine) {
		e.policy = &p
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks. Repeated calls chain in order.
func WithHooks(h domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Then(h)
	}
}

// WithPredicateEvaluator replaces the default Lua evaluator for transition
// rules.
func WithPredicateEvaluator(ev predicate.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithRefiner replaces the prompt refinement applied to model retries after
// a contract violation.
func WithRefiner(r runtime.Refiner) Option {
	return func(e *Engine) {
		e.refiner = r
	}
}

// WithClock injects the time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleep injects the retry backoff sleeper. Test seam.
func WithSleep(sleep runtime.SleepFunc) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}
