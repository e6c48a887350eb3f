package guide

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Runner drives a session interactively over plain IO: it prints each
// suspension prompt, reads a line, and resumes until the session reaches a
// terminal status. Frontends (CLI, TUI, tests) supply the reader, writer
// and an optional prompt renderer.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Renderer ContentRenderer
}

// ContentRenderer transforms a suspension prompt before display, e.g.
// markdown to ANSI. A render error falls back to the raw prompt.
type ContentRenderer func(string) (string, error)

// Run starts a fresh session and drives it to a terminal status. The
// returned state is the final snapshot even when err is non-nil, unless the
// start itself failed.
func (r *Runner) Run(ctx context.Context, engine *Engine, sessionID string, initial map[string]any) (*domain.SessionState, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	state, err := engine.Start(ctx, sessionID, initial)
	if err != nil {
		return nil, err
	}
	return r.drive(ctx, engine, state)
}

// Continue picks up a persisted session: crashed running sessions re-execute
// their current step, suspended ones prompt for input again.
func (r *Runner) Continue(ctx context.Context, engine *Engine, sessionID string) (*domain.SessionState, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	state, err := engine.Status(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status == domain.StatusRunning {
		if state, err = engine.Resume(ctx, sessionID, nil); err != nil {
			return nil, err
		}
	}
	return r.drive(ctx, engine, state)
}

func (r *Runner) check() error {
	if r.Input == nil {
		return errors.New("runner: input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("runner: output writer must be set (use os.Stdout)")
	}
	return nil
}

// drive loops over suspensions. Rejected input re-suspends the session, so
// the loop re-prompts naturally until the input contract is satisfied or
// the engine gives up.
func (r *Runner) drive(ctx context.Context, engine *Engine, state *domain.SessionState) (*domain.SessionState, error) {
	reader := bufio.NewReader(r.Input)

	for state.Status == domain.StatusSuspended {
		prompt := state.Awaiting
		if r.Renderer != nil {
			if rendered, err := r.Renderer(prompt); err == nil {
				prompt = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(prompt))
		fmt.Fprint(r.Output, "> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.Output)
				return engine.Cancel(ctx, state.ID)
			}
			return state, fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "exit" || input == "quit" {
			return engine.Cancel(ctx, state.ID)
		}

		// The session stays suspended on bad input, so rejecting here just
		// re-prompts on the next pass.
		input, err = SanitizeInput(input)
		if err != nil {
			fmt.Fprintf(r.Output, "input rejected: %v\n", err)
			continue
		}

		next, err := engine.Resume(ctx, state.ID, input)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}
