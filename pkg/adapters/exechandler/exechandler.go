// Package exechandler backs deterministic steps with subprocess execution.
// The session context travels to the child as environment variables, never
// as command-line flags: argv stays exactly as the workflow declared it,
// which closes off flag injection entirely.
package exechandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/handler"
)

// envPrefix namespaces the context variables handed to the child.
const envPrefix = "GUIDE_ARG_"

// tempFailExit is the sysexits.h EX_TEMPFAIL code. A child exiting with it
// signals a retryable condition; any other non-zero exit is fatal.
const tempFailExit = 75

// Option configures the handler.
type Option func(*config)

type config struct {
	dir string
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// New builds a handler.Func that runs argv once per execution attempt.
// Stdout is the step's raw output; JSON documents are decoded so value
// contracts see structured data, anything else is a trimmed string.
func New(argv []string, opts ...Option) (handler.Func, error) {
	if len(argv) == 0 {
		return nil, errors.New("exechandler: empty argv")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	command := argv[0]
	args := append([]string(nil), argv[1:]...)

	return func(ctx context.Context, sessionCtx map[string]any) (any, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Dir = cfg.dir
		cmd.Env = append(cmd.Environ(), contextEnv(sessionCtx)...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			reason := fmt.Sprintf("%s failed: %v", command, err)
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				reason = fmt.Sprintf("%s: %s", reason, msg)
			}

			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == tempFailExit {
				return nil, domain.Transient(reason, err)
			}
			return nil, domain.Fatal(reason, err)
		}

		return decodeOutput(stdout.String()), nil
	}, nil
}

// contextEnv serializes the session context as GUIDE_ARG_* variables.
// Primitives are printed plainly; anything structured crosses as JSON.
func contextEnv(sessionCtx map[string]any) []string {
	env := make([]string, 0, len(sessionCtx))
	for k, v := range sessionCtx {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if data, err := json.Marshal(v); err == nil {
				val = string(data)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, envPrefix+sanitizeKey(k)+"="+val)
	}
	return env
}

func sanitizeKey(k string) string {
	up := strings.ToUpper(k)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, up)
}

// decodeOutput auto-detects JSON stdout so scripted steps can emit
// structured results without any framing protocol.
func decodeOutput(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return trimmed
}
