package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/model"
	"github.com/rluijk/guided-llm-cli/pkg/schema"
)

// run drives the session until it parks (Suspended) or finishes (Completed,
// Failed, Cancelled). pending carries user input supplied on Resume; it is
// consumed by the first input step encountered.
//
// Every committed outcome is persisted before the loop advances. The sole
// at-least-once unit is the persisted current step: a crash mid-attempt
// re-executes it on the next resume, nothing earlier.
func (e *Engine) run(ctx context.Context, state *domain.SessionState, pending any) (*domain.SessionState, error) {
	attempt := state.PendingAttempts() + 1

	for {
		if ctx.Err() != nil {
			return e.finish(ctx, state, domain.StatusCancelled, reasonCancelled)
		}

		step, err := e.registry.Get(state.Current)
		if err != nil {
			e.record(ctx, state, nil, &domain.StepResult{
				Step:    state.Current,
				Attempt: attempt,
				Outcome: domain.OutcomeFatalFailure,
				Reason:  err.Error(),
				At:      e.now(),
			})
			return e.finish(ctx, state, domain.StatusFailed, err.Error())
		}

		if step.Kind == domain.StepTerminal {
			// Reaching the terminal step is the record; no attempt runs.
			return e.finish(ctx, state, domain.StatusCompleted, "")
		}

		if step.Kind == domain.StepUserInput && pending == nil {
			return e.suspend(ctx, state, step)
		}

		input := pending
		pending = nil
		if input != nil && step.Kind != domain.StepUserInput {
			e.logger.Warn("discarding input: current step does not take any",
				"session", state.ID, "step", step.ID)
			input = nil
		}

		e.emitStepStart(ctx, state, step, attempt)

		started := e.now()
		fields, execErr := e.execute(ctx, state, step, attempt, input)
		latency := e.now().Sub(started)

		// Cancellation beats whatever the attempt produced: the caller asked
		// to stop before the transition committed.
		if ctx.Err() != nil {
			e.record(ctx, state, step, &domain.StepResult{
				Step:    step.ID,
				Attempt: attempt,
				Outcome: domain.OutcomeAborted,
				Reason:  reasonCancelled,
				At:      e.now(),
				Latency: latency,
			})
			return e.finish(ctx, state, domain.StatusCancelled, reasonCancelled)
		}

		if execErr == nil {
			e.record(ctx, state, step, &domain.StepResult{
				Step:    step.ID,
				Attempt: attempt,
				Outcome: domain.OutcomeSuccess,
				At:      e.now(),
				Latency: latency,
			})
			for k, v := range fields {
				state.Context[k] = v
			}

			next, err := e.resolveNext(ctx, step, state, fields)
			if err != nil {
				e.logger.Error("transition failed",
					"session", state.ID, "step", step.ID, "err", err)
				return e.finish(ctx, state, domain.StatusFailed, err.Error())
			}

			state.Current = next
			if err := e.persist(ctx, state); err != nil {
				return state, err
			}
			e.logger.Debug("step completed",
				"session", state.ID, "step", step.ID, "next", next, "attempt", attempt)
			attempt = 1
			continue
		}

		class := domain.ClassOf(execErr)
		reason := execErr.Error()
		e.record(ctx, state, step, &domain.StepResult{
			Step:    step.ID,
			Attempt: attempt,
			Outcome: class.Outcome(),
			Reason:  reason,
			At:      e.now(),
			Latency: latency,
		})

		decision := e.policy.Decide(step.Kind, class, attempt, step.Retry)
		if !decision.Retry {
			e.logger.Error("step failed, giving up",
				"session", state.ID, "step", step.ID, "attempt", attempt,
				"class", class, "err", execErr)
			return e.finish(ctx, state, domain.StatusFailed, reason)
		}

		if step.Kind == domain.StepUserInput {
			// Rejected input parks the session again; the recorded failure
			// keeps the retry budget counting across resumes.
			e.logger.Warn("input rejected, suspending again",
				"session", state.ID, "step", step.ID, "attempt", attempt, "err", execErr)
			return e.suspend(ctx, state, step)
		}

		if err := e.persist(ctx, state); err != nil {
			return state, err
		}
		e.emitRetry(ctx, state, step, attempt, decision.Delay)
		e.logger.Warn("step failed, retrying",
			"session", state.ID, "step", step.ID, "attempt", attempt,
			"class", class, "delay", decision.Delay, "err", execErr)

		if decision.Delay > 0 {
			if err := e.sleep(ctx, decision.Delay); err != nil {
				return e.finish(ctx, state, domain.StatusCancelled, reasonCancelled)
			}
		}
		attempt++
	}
}

// execute runs one attempt of a non-terminal step and validates its raw
// output. The returned error is always classifiable via domain.ClassOf.
func (e *Engine) execute(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition, attempt int, input any) (map[string]any, error) {
	switch step.Kind {
	case domain.StepUserInput:
		raw, err := coerceInput(step.Output, input)
		if err != nil {
			return nil, domain.Invalid("input rejected", err)
		}
		return validateOutput(step, raw)

	case domain.StepDeterministic:
		if err := checkInputContract(step, state.Context); err != nil {
			return nil, err
		}
		raw, err := e.handlers.Execute(ctx, effectiveHandler(step), state.Context)
		if err != nil {
			var stepErr *domain.StepError
			if errors.As(err, &stepErr) {
				return nil, stepErr
			}
			return nil, domain.Fatal(fmt.Sprintf("handler %q failed", effectiveHandler(step)), err)
		}
		return validateOutput(step, raw)

	case domain.StepModelDriven:
		if err := checkInputContract(step, state.Context); err != nil {
			return nil, err
		}
		prompt, err := model.Interpolate(step.Prompt, state.Context)
		if err != nil {
			return nil, domain.Fatal("prompt interpolation failed", err)
		}
		if attempt > 1 {
			prompt = e.refiner(prompt, lastFailureReason(state), attempt)
		}
		out, err := e.model.Invoke(ctx, model.Request{
			Session: state.ID,
			Step:    step.ID,
			Prompt:  prompt,
			Context: state.Context,
			Attempt: attempt,
		}, step.Timeout)
		if err != nil {
			return nil, err
		}
		return validateOutput(step, out)

	default:
		return nil, domain.Fatal(fmt.Sprintf("step %q has unexpected kind %q", step.ID, step.Kind), nil)
	}
}

// suspend parks the session waiting for user input. A clean suspension
// consumes no attempt and appends nothing to history.
func (e *Engine) suspend(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition) (*domain.SessionState, error) {
	prompt, err := model.Interpolate(step.Prompt, state.Context)
	if err != nil {
		reason := fmt.Sprintf("prompt interpolation failed: %v", err)
		return e.finish(ctx, state, domain.StatusFailed, reason)
	}
	state.Status = domain.StatusSuspended
	state.Awaiting = prompt
	if err := e.persist(ctx, state); err != nil {
		return state, err
	}
	e.logger.Info("session suspended", "session", state.ID, "step", step.ID)
	return state, nil
}

// finish commits a final status and emits the session end event.
func (e *Engine) finish(ctx context.Context, state *domain.SessionState, status domain.SessionStatus, reason string) (*domain.SessionState, error) {
	state.Status = status
	state.Reason = reason
	state.Awaiting = ""
	if err := e.persist(ctx, state); err != nil {
		return state, err
	}
	e.logger.Info("session finished",
		"session", state.ID, "status", status, "reason", reason)
	e.emitSessionEnd(ctx, state)
	return state, nil
}

// record appends one attempt result to history and emits the step end event.
// Persistence is the caller's job: results ride along with the status or
// transition commit they belong to.
func (e *Engine) record(ctx context.Context, state *domain.SessionState, step *domain.StepDefinition, res *domain.StepResult) {
	state.History = append(state.History, *res)
	e.emitStepEnd(ctx, state, step, res)
}

// persist saves the session through the manager. Saves survive caller
// cancellation: a cancelled run must still commit its Cancelled snapshot.
func (e *Engine) persist(ctx context.Context, state *domain.SessionState) error {
	state.UpdatedAt = e.now()
	if err := e.sessions.Save(context.WithoutCancel(ctx), state); err != nil {
		return fmt.Errorf("persist session %s: %w", state.ID, err)
	}
	return nil
}

func validateOutput(step *domain.StepDefinition, raw any) (map[string]any, error) {
	if step.Output == nil {
		return nil, domain.Fatal(fmt.Sprintf("step %q has no output contract", step.ID), nil)
	}
	fields, err := step.Output.Validate(raw)
	if err != nil {
		return nil, domain.Invalid("output rejected", err)
	}
	return fields, nil
}

func checkInputContract(step *domain.StepDefinition, sessionCtx map[string]any) error {
	if len(step.Input) == 0 {
		return nil
	}
	if err := schema.Validate(step.Input, sessionCtx); err != nil {
		// Missing or mistyped inputs mean an upstream step broke its
		// promise: a definition bug, not something a retry can fix.
		return domain.Fatal(fmt.Sprintf("step %q input contract violated", step.ID), err)
	}
	return nil
}

// coerceInput parses a string supplied for a single-field input step into
// the declared type. Structured input and multi-field contracts pass through
// untouched and are judged by the contract itself.
func coerceInput(contract schema.Contract, input any) (any, error) {
	s, ok := input.(string)
	if !ok || contract == nil {
		return input, nil
	}
	fields := contract.Fields()
	if len(fields) != 1 {
		return input, nil
	}
	for _, t := range fields {
		return schema.Coerce(t, s)
	}
	return input, nil
}

// effectiveHandler names the registered handler for a deterministic step.
// Exec-backed steps without an explicit name register under their step id.
func effectiveHandler(step *domain.StepDefinition) string {
	if step.Handler != "" {
		return step.Handler
	}
	return step.ID
}

// lastFailureReason returns the reason of the most recent failed attempt of
// the current step. History survives restarts, so prompt refinement sees the
// violation even when the retry runs in a fresh process.
func lastFailureReason(state *domain.SessionState) string {
	for i := len(state.History) - 1; i >= 0; i-- {
		r := state.History[i]
		if r.Step != state.Current {
			return ""
		}
		if r.Outcome != domain.OutcomeSuccess {
			return r.Reason
		}
	}
	return ""
}
