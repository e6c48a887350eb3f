// Package model wraps the injected model-call capability with the
// per-attempt discipline the engine relies on: a hard timeout and failure
// classification. The adapter never retries; recovery decisions belong to
// the policy table.
package model

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// DefaultTimeout bounds one model call attempt when neither the step nor
// the adapter sets its own limit.
const DefaultTimeout = 30 * time.Second

// Request carries one prompt to the model capability.
type Request struct {
	Session string
	Step    string
	Prompt  string
	Context map[string]any
	Attempt int
}

// CallFunc is the injected model capability. Implementations own transport,
// authentication, and provider choice; the engine never sees any of it.
type CallFunc func(ctx context.Context, req Request) (string, error)

// Classifier maps a transport error to a failure class. Error taxonomies
// differ per provider, so the caller supplies the mapping.
type Classifier func(error) domain.FailureClass

// DefaultClassifier treats deadline and cancellation errors as transient and
// everything else as fatal. Transports with richer taxonomies (HTTP status
// codes, rate limits) should supply their own.
func DefaultClassifier(err error) domain.FailureClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.FailureTransient
	}
	return domain.FailureFatal
}

// Adapter invokes the model capability one attempt at a time.
type Adapter struct {
	call     CallFunc
	classify Classifier
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures the adapter.
type Option func(*Adapter)

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClassifier sets the error classifier.
func WithClassifier(c Classifier) Option {
	return func(a *Adapter) {
		if c != nil {
			a.classify = c
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New wraps a model capability.
func New(call CallFunc, opts ...Option) *Adapter {
	a := &Adapter{
		call:     call,
		classify: DefaultClassifier,
		timeout:  DefaultTimeout,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Invoke runs exactly one attempt under a hard timeout. timeout overrides
// the adapter default when positive. Failures come back as
// *domain.StepError carrying the classified failure class; a timeout is
// always transient no matter what the classifier says.
func (a *Adapter) Invoke(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	if a.call == nil {
		return "", domain.NewStepError(domain.FailureFatal, "no model capability configured", nil)
	}
	if timeout <= 0 {
		timeout = a.timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := a.call(callCtx, req)
	latency := time.Since(start)

	if err != nil {
		class := a.classify(err)
		if errors.Is(err, context.DeadlineExceeded) {
			class = domain.FailureTransient
		}
		a.logger.Debug("model call failed",
			"session", req.Session, "step", req.Step, "attempt", req.Attempt,
			"latency", latency, "class", class, "error", err)
		return "", domain.NewStepError(class, "model call failed", err)
	}

	a.logger.Debug("model call ok",
		"session", req.Session, "step", req.Step, "attempt", req.Attempt,
		"latency", latency)
	return out, nil
}
