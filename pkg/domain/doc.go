/*
Package domain contains the core domain models for the guided session engine.

It defines the fundamental entities of the orchestration model: workflow steps,
transitions between them, and the persisted session snapshot. This package is
kept free of I/O and persistence concerns, following Hexagonal Architecture
principles.

# Key Entities

  - StepDefinition: one unit of a workflow (deterministic, model-driven,
    user-input, or terminal) with input/output contracts.
  - Transition: the routing rule applied after a step succeeds (fixed target,
    predicate rules, or model-chosen from an allow-list).
  - SessionState: the runtime snapshot of a session (current step, typed
    context, append-only attempt history, status).
  - StepResult: one immutable execution attempt record.
*/
package domain
