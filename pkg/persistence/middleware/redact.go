package middleware

import (
	"context"
	"regexp"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
)

type redactMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// Redaction masks the values of context keys matching any of the patterns
// before they are persisted. User-input steps routinely capture free text;
// this keeps tokens and secrets workflows collect out of stores at rest.
// Masking is one-way: a resumed session sees "***" where the value was.
func Redaction(patternStrings ...string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, state *domain.SessionState) error {
	// Work on a clone so the engine's in-memory state keeps the real values.
	// Clone copies values shallowly, so nested maps need their own copies
	// before masking touches them.
	cloned := state.Clone()
	cloned.Context = deepCopyMap(state.Context)
	maskMap(cloned.Context, m.patterns)
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*domain.SessionState, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = "***"
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
