package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/internal/presentation/tui"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// RunConfig controls one terminal-driven session run.
type RunConfig struct {
	SessionID string
	Initial   map[string]any
	Resume    bool      // continue a persisted session instead of starting one
	Input     io.Reader // defaults to os.Stdin
	Output    io.Writer // defaults to os.Stdout
	Plain     bool      // disable the banner and markdown rendering
}

// RunSession drives a session until it parks. On a TTY prompts are rendered
// as markdown behind a banner; piped IO stays plain. SIGINT and SIGTERM
// cancel the session cleanly, as does EOF on input.
func RunSession(parent context.Context, eng *guide.Engine, cfg RunConfig) (*domain.SessionState, error) {
	in := cfg.Input
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	sig := NewSignalContext(parent)
	defer sig.Cancel()

	interactive := !cfg.Plain && isTerminal(out)
	if interactive {
		tui.Banner(out)
	}

	runner := &guide.Runner{
		Input:  NewInterruptibleReader(in, sig.Done()),
		Output: out,
	}
	if interactive {
		runner.Renderer = tui.NewRenderer()
	}

	var state *domain.SessionState
	var err error
	if cfg.Resume {
		state, err = runner.Continue(sig, eng, cfg.SessionID)
	} else {
		state, err = runner.Run(sig, eng, cfg.SessionID, cfg.Initial)
	}

	if sig.Signal() != nil {
		// The loop unblocked because of the signal. Park the session as
		// cancelled so a later resume cannot pick it up mid-step; the
		// original context is dead, so use a fresh one.
		fmt.Fprintln(out)
		id := cfg.SessionID
		if state != nil {
			id = state.ID
		}
		if id != "" {
			if cancelled, cerr := eng.Cancel(context.Background(), id); cerr == nil {
				state = cancelled
			}
		}
		return state, nil
	}
	return state, err
}

// ExitCode maps a run outcome to the process exit code: 0 completed or
// parked, 1 failed, 2 cancelled, 3 anything that prevented a verdict.
func ExitCode(state *domain.SessionState, err error) int {
	if state != nil {
		switch state.Status {
		case domain.StatusFailed:
			return 1
		case domain.StatusCancelled:
			return 2
		}
	}
	if err != nil {
		return 3
	}
	if state == nil {
		// Interrupted before anything was persisted.
		return 2
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
