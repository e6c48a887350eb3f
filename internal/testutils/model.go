package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/rluijk/guided-llm-cli/pkg/model"
)

// ModelTurn is one scripted model exchange.
type ModelTurn struct {
	Output string
	Err    error
}

// Reply scripts a successful model response.
func Reply(output string) ModelTurn {
	return ModelTurn{Output: output}
}

// Fail scripts a failed model call.
func Fail(err error) ModelTurn {
	return ModelTurn{Err: err}
}

// ScriptedModel plays back a fixed sequence of model responses and records
// every request it saw. Calls past the end of the script fail the session
// loudly rather than looping forever.
type ScriptedModel struct {
	mu    sync.Mutex
	turns []ModelTurn
	calls []model.Request
}

// NewScriptedModel builds a stub model capability.
func NewScriptedModel(turns ...ModelTurn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Call implements model.CallFunc.
func (m *ScriptedModel) Call(ctx context.Context, req model.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.calls) > len(m.turns) {
		return "", fmt.Errorf("scripted model exhausted after %d calls", len(m.turns))
	}
	turn := m.turns[len(m.calls)-1]
	return turn.Output, turn.Err
}

// Calls returns a copy of every request recorded so far.
func (m *ScriptedModel) Calls() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.calls...)
}
