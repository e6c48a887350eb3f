package model

import (
	"fmt"
	"strings"
)

// Interpolate renders a prompt template, replacing ${key} references with
// values from the session context. An unresolved key is an error: prompts
// built from missing context are a workflow bug, not something to send to
// the model half-empty.
func Interpolate(template string, sessionCtx map[string]any) (string, error) {
	var sb strings.Builder
	rest := template

	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		sb.WriteString(rest[:i])
		rest = rest[i+2:]

		j := strings.IndexByte(rest, '}')
		if j < 0 {
			return "", fmt.Errorf("unterminated ${ in prompt template")
		}
		key := rest[:j]
		rest = rest[j+1:]

		value, ok := sessionCtx[key]
		if !ok {
			return "", fmt.Errorf("prompt references missing context key %q", key)
		}
		fmt.Fprintf(&sb, "%v", value)
	}
}
