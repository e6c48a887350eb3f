/*
Package guide is a session orchestration engine for CLI tools that mix
deterministic steps with LLM-driven ones. A workflow declares the steps, the
contracts their outputs must satisfy, and the transitions between them; the
engine executes steps, validates outputs, retries recoverable failures, and
persists every committed transition so a session can resume after a crash or
across processes.

# Concept

A workflow is a directed graph of typed steps. Deterministic steps run
registered Go functions or subprocesses; model-driven steps interpolate a
prompt, call an injected model capability, and hold its reply to a declared
output contract; input steps suspend the session until a caller provides a
value. Transitions are fixed, predicate-routed (Lua expressions over the
session context and the step's output), or chosen by the model from an
allow-list. The engine owns sequencing, validation, retries, and
persistence; the host owns IO and the model transport. That split keeps the
core embeddable in a CLI, an HTTP service, or an agent runtime.

# Key properties

  - Contract-checked outputs: model replies are parsed and validated before
    they can influence control flow; malformed replies burn a bounded retry,
    never corrupt state.
  - Crash-resumable sessions: state is persisted before the engine advances,
    so a restart re-executes at most the current step.
  - Bounded recovery: transient failures back off and retry, validation
    failures retry with a refined prompt, fatal failures stop the session.

# Usage

Build a workflow (in code via the dsl package, or from YAML / markdown
documents), register handlers for deterministic steps, inject a model
capability, and start a session:

	package main

	import (
		"context"
		"fmt"
		"log"

		guide "github.com/rluijk/guided-llm-cli"
		"github.com/rluijk/guided-llm-cli/pkg/dsl"
		"github.com/rluijk/guided-llm-cli/pkg/model"
		"github.com/rluijk/guided-llm-cli/pkg/schema"
	)

	func main() {
		b := dsl.New("triage")
		b.Model("classify", "Classify this report: ${report}").
			Extract("severity", schema.Enum("low", "high")).
			Choose("low", "high")
		b.Terminal("low")
		b.Terminal("high")
		wf, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		eng, err := guide.New(
			guide.WithWorkflow(wf),
			guide.WithModel(func(ctx context.Context, req model.Request) (string, error) {
				// call your LLM here
				return `{"severity": "low", "next": "low"}`, nil
			}),
		)
		if err != nil {
			log.Fatal(err)
		}

		state, err := eng.Start(context.Background(), "",
			map[string]any{"report": "the login page is slow"})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(state.Status, state.Current)
	}

Sessions persist to an in-memory store by default; install
pkg/adapters/file or pkg/adapters/redis for durability, and wrap stores
with pkg/persistence/middleware for encryption at rest.
*/
package guide
