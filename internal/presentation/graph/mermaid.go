// Package graph renders workflows as Mermaid flowcharts, optionally
// overlaying the progress of one session.
package graph

import (
	"fmt"
	"strings"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Overlay marks session progress on the rendered workflow.
type Overlay struct {
	Visited []string
	Current string
}

// FromSession builds an overlay from a persisted session: every step with a
// recorded attempt is visited, the current step is highlighted.
func FromSession(state *domain.SessionState) *Overlay {
	if state == nil {
		return nil
	}
	o := &Overlay{Current: state.Current}
	for _, res := range state.History {
		o.Visited = append(o.Visited, res.Step)
	}
	return o
}

// Mermaid produces a flowchart of the workflow. Step shapes follow kind:
// deterministic [[subroutine]], model ([stadium]), input [/parallelogram/],
// terminal ((circle)). Predicate edges carry their expression, model-chosen
// edges are dotted.
func Mermaid(wf *domain.Workflow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i := range wf.Steps {
		step := &wf.Steps[i]
		safeID := sanitizeID(step.ID)

		opener, closer := "[", "]"
		switch step.Kind {
		case domain.StepDeterministic:
			opener, closer = "[[", "]]"
		case domain.StepModelDriven:
			opener, closer = "([", "])"
		case domain.StepUserInput:
			opener, closer = "[/", "/]"
		case domain.StepTerminal:
			opener, closer = "((", "))"
		}

		label := step.ID
		if step.Timeout > 0 {
			label = fmt.Sprintf("%s <br/> ⏱️ %s", step.ID, step.Timeout)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		switch step.Next.Kind() {
		case domain.TransitionFixed:
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeID(step.Next.To)))
		case domain.TransitionPredicate:
			for _, rule := range step.Next.Rules {
				when := strings.ReplaceAll(rule.When, `"`, "'")
				sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, when, sanitizeID(rule.To)))
			}
		case domain.TransitionChoice:
			for _, target := range step.Next.ChooseFrom {
				sb.WriteString(fmt.Sprintf("    %s -. \"%s?\" .-> %s\n", safeID, step.Next.ChoiceField(), sanitizeID(target)))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Session overlay\n")
		// color:#000 keeps labels readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := sanitizeID(id)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
		}
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeID(overlay.Current)))
		}
	}

	return sb.String()
}

func sanitizeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
