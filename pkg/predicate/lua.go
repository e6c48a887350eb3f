package predicate

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
)

const statePoolSize = 8

// Globals that would let a rule touch the host. Transition rules are data,
// not programs; they only get to look at the values bound for them.
var excluded = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// Lua evaluates rule expressions as sandboxed Lua. Each call binds the env
// entries as globals (typically "ctx" and "output" tables), wraps the
// expression in a return statement, and requires a boolean result.
//
// States are pooled and safe for concurrent use.
type Lua struct {
	pool chan *lua.State
}

// NewLua creates a pooled Lua evaluator.
func NewLua() *Lua {
	return &Lua{pool: make(chan *lua.State, statePoolSize)}
}

// Evaluate runs one expression. A load failure, runtime error, or
// non-boolean result is an error: rules are part of the workflow definition
// and a broken rule is a definition bug, not a falsy match.
func (e *Lua) Evaluate(ctx context.Context, expr string, env map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if expr == "" {
		return false, fmt.Errorf("empty rule expression")
	}

	l := e.get()
	defer e.put(l)

	for name, value := range env {
		pushValue(l, value)
		l.SetGlobal(name)
	}
	// Unbind afterwards so one evaluation cannot observe another's env.
	defer func() {
		for name := range env {
			l.PushNil()
			l.SetGlobal(name)
		}
	}()

	if err := lua.LoadString(l, "return "+expr); err != nil {
		return false, fmt.Errorf("rule %q does not compile: %w", expr, err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return false, fmt.Errorf("rule %q failed: %w", expr, err)
	}

	if !l.IsBoolean(-1) {
		l.Pop(1)
		return false, fmt.Errorf("rule %q did not produce a boolean", expr)
	}
	result := l.ToBoolean(-1)
	l.Pop(1)
	return result, nil
}

func (e *Lua) get() *lua.State {
	select {
	case l := <-e.pool:
		return l
	default:
		return newSandboxedState()
	}
}

func (e *Lua) put(l *lua.State) {
	l.SetTop(0)
	select {
	case e.pool <- l:
	default:
	}
}

func newSandboxedState() *lua.State {
	l := lua.NewState()
	lua.OpenLibraries(l)
	l.Global("_G")
	for _, name := range excluded {
		l.PushNil()
		l.SetField(-2, name)
	}
	l.Pop(1)
	return l
}

func pushValue(l *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(v)
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(v)
	case int64:
		l.PushInteger(int(v))
	case float64:
		l.PushNumber(v)
	case []any:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			l.PushInteger(i + 1)
			pushValue(l, item)
			l.SetTable(-3)
		}
	case map[string]any:
		l.CreateTable(0, len(v))
		for k, item := range v {
			l.PushString(k)
			pushValue(l, item)
			l.SetTable(-3)
		}
	default:
		l.PushString(fmt.Sprintf("%v", v))
	}
}
