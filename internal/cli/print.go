package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// PrintOutcome writes the one-line verdict shown after run, start, and
// resume.
func PrintOutcome(w io.Writer, state *domain.SessionState) {
	switch state.Status {
	case domain.StatusCompleted:
		fmt.Fprintf(w, "session %s completed at %q\n", state.ID, state.Current)
	case domain.StatusFailed:
		fmt.Fprintf(w, "session %s failed at %q: %s\n", state.ID, state.Current, state.Reason)
	case domain.StatusCancelled:
		fmt.Fprintf(w, "session %s cancelled at %q\n", state.ID, state.Current)
	case domain.StatusSuspended:
		fmt.Fprintf(w, "session %s awaiting input at %q; continue with: guide resume %s\n",
			state.ID, state.Current, state.ID)
	default:
		fmt.Fprintf(w, "session %s parked mid-step at %q; continue with: guide resume %s\n",
			state.ID, state.Current, state.ID)
	}
}

// PrintStatus writes the full human-readable view of a session: position,
// status, pending prompt, and the attempt history.
func PrintStatus(w io.Writer, state *domain.SessionState) {
	workflow := state.Workflow
	if state.WorkflowVersion != "" {
		workflow += "@" + state.WorkflowVersion
	}

	fmt.Fprintf(w, "Session:  %s\n", state.ID)
	fmt.Fprintf(w, "Workflow: %s\n", workflow)
	fmt.Fprintf(w, "Status:   %s\n", state.Status)
	fmt.Fprintf(w, "Step:     %s\n", state.Current)
	if state.Awaiting != "" {
		fmt.Fprintf(w, "Awaiting: %s\n", state.Awaiting)
	}
	if state.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", state.Reason)
	}
	fmt.Fprintf(w, "Updated:  %s\n", state.UpdatedAt.Format(time.RFC3339))

	if len(state.History) == 0 {
		return
	}
	fmt.Fprintln(w, "History:")
	for _, r := range state.History {
		line := fmt.Sprintf("  %-20s #%-2d %-19s %8s", r.Step, r.Attempt, r.Outcome,
			r.Latency.Round(time.Millisecond))
		if r.Reason != "" {
			line += "  " + r.Reason
		}
		fmt.Fprintln(w, line)
	}
}
