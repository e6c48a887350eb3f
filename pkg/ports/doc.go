/*
Package ports defines the driven ports (interfaces) for the guided session
engine.

These interfaces decouple the engine core from external implementations,
allowing it to work with different persistence backends, workflow document
sources, and lock providers.

# Key Interfaces

  - SessionStore: persists and reloads SessionState snapshots (memory, file,
    redis).
  - WorkflowSource: loads a workflow definition from a backing document
    format (YAML file, markdown directory, in-memory builder).
  - DistributedLocker: multi-process mutual exclusion scoped to a session id.
*/
package ports
