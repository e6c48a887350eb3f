package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

func TestInvoke_Success(t *testing.T) {
	adapter := New(func(ctx context.Context, req Request) (string, error) {
		return "odd", nil
	})

	out, err := adapter.Invoke(context.Background(), Request{Step: "classify"}, 0)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "odd" {
		t.Errorf("Invoke() = %q, want odd", out)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	adapter := New(func(ctx context.Context, req Request) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	start := time.Now()
	_, err := adapter.Invoke(context.Background(), Request{}, 20*time.Millisecond)
	if err == nil {
		t.Fatal("Invoke() error = nil, want timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Invoke() did not enforce the per-attempt timeout")
	}

	var se *domain.StepError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *domain.StepError", err)
	}
	if se.Class != domain.FailureTransient {
		t.Errorf("timeout class = %q, want transient", se.Class)
	}
}

func TestInvoke_TimeoutOverridesClassifier(t *testing.T) {
	// A classifier that calls everything fatal must not reclassify timeouts.
	adapter := New(
		func(ctx context.Context, req Request) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		WithClassifier(func(error) domain.FailureClass { return domain.FailureFatal }),
	)

	_, err := adapter.Invoke(context.Background(), Request{}, 10*time.Millisecond)

	var se *domain.StepError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *domain.StepError", err)
	}
	if se.Class != domain.FailureTransient {
		t.Errorf("timeout class = %q, want transient even under a fatal-only classifier", se.Class)
	}
}

func TestInvoke_Classification(t *testing.T) {
	transportErr := errors.New("429 too many requests")
	classify := func(err error) domain.FailureClass {
		if strings.HasPrefix(err.Error(), "429") {
			return domain.FailureTransient
		}
		return domain.FailureFatal
	}

	adapter := New(
		func(ctx context.Context, req Request) (string, error) {
			return "", transportErr
		},
		WithClassifier(classify),
	)

	_, err := adapter.Invoke(context.Background(), Request{}, 0)

	var se *domain.StepError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *domain.StepError", err)
	}
	if se.Class != domain.FailureTransient {
		t.Errorf("class = %q, want transient per classifier", se.Class)
	}
	if !errors.Is(err, transportErr) {
		t.Error("StepError should wrap the transport error")
	}
}

func TestInvoke_NeverRetries(t *testing.T) {
	calls := 0
	adapter := New(func(ctx context.Context, req Request) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	_, _ = adapter.Invoke(context.Background(), Request{}, 0)
	if calls != 1 {
		t.Errorf("capability invoked %d times for one attempt, want 1", calls)
	}
}

func TestInvoke_NoCapability(t *testing.T) {
	adapter := New(nil)

	_, err := adapter.Invoke(context.Background(), Request{}, 0)
	var se *domain.StepError
	if !errors.As(err, &se) || se.Class != domain.FailureFatal {
		t.Errorf("missing capability should be a fatal StepError, got %v", err)
	}
}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		err  error
		want domain.FailureClass
	}{
		{context.DeadlineExceeded, domain.FailureTransient},
		{context.Canceled, domain.FailureTransient},
		{errors.New("bad request"), domain.FailureFatal},
	}

	for _, tt := range tests {
		if got := DefaultClassifier(tt.err); got != tt.want {
			t.Errorf("DefaultClassifier(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInterpolate(t *testing.T) {
	sessionCtx := map[string]any{"sum": 5, "name": "ada"}

	tests := []struct {
		template string
		want     string
		wantErr  bool
	}{
		{"Is ${sum} even or odd?", "Is 5 even or odd?", false},
		{"${name} and ${name}", "ada and ada", false},
		{"no references", "no references", false},
		{"", "", false},
		{"missing ${ghost}", "", true},
		{"unterminated ${sum", "", true},
	}

	for _, tt := range tests {
		got, err := Interpolate(tt.template, sessionCtx)
		if (err != nil) != tt.wantErr {
			t.Errorf("Interpolate(%q) error = %v, wantErr %v", tt.template, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}
