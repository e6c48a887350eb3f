package policy

import (
	"testing"
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

func TestDecide_FatalNeverRetries(t *testing.T) {
	table := NewTable(domain.RetryPolicy{})

	for _, kind := range []domain.StepKind{
		domain.StepDeterministic, domain.StepModelDriven, domain.StepUserInput,
	} {
		d := table.Decide(kind, domain.FailureFatal, 1, nil)
		if d.Retry {
			t.Errorf("Decide(%s, fatal, 1) retried", kind)
		}
	}
}

func TestDecide_TransientBudget(t *testing.T) {
	table := NewTable(domain.RetryPolicy{MaxAttempts: 3})

	tests := []struct {
		attempt   int
		wantRetry bool
	}{
		{1, true},
		{2, true},
		{3, false}, // budget consumed
		{4, false},
	}

	for _, tt := range tests {
		d := table.Decide(domain.StepModelDriven, domain.FailureTransient, tt.attempt, nil)
		if d.Retry != tt.wantRetry {
			t.Errorf("Decide(transient, attempt %d).Retry = %v, want %v", tt.attempt, d.Retry, tt.wantRetry)
		}
		if d.Retry && d.Delay <= 0 {
			t.Errorf("Decide(transient, attempt %d).Delay = %v, want > 0", tt.attempt, d.Delay)
		}
	}
}

func TestDecide_ValidationByKind(t *testing.T) {
	table := NewTable(domain.RetryPolicy{ValidationMaxAttempts: 3})

	// Model output that misses the contract is re-prompted.
	if d := table.Decide(domain.StepModelDriven, domain.FailureValidation, 1, nil); !d.Retry {
		t.Error("model validation failure on attempt 1 should retry")
	}
	// Re-prompts are immediate.
	if d := table.Decide(domain.StepModelDriven, domain.FailureValidation, 1, nil); d.Delay != 0 {
		t.Errorf("validation retry delay = %v, want 0", d.Delay)
	}
	// Invalid user input re-prompts too.
	if d := table.Decide(domain.StepUserInput, domain.FailureValidation, 1, nil); !d.Retry {
		t.Error("input validation failure on attempt 1 should retry")
	}
	// Deterministic output is the same bytes every run: never retried.
	if d := table.Decide(domain.StepDeterministic, domain.FailureValidation, 1, nil); d.Retry {
		t.Error("deterministic validation failure must not retry")
	}
	// Budget still applies.
	if d := table.Decide(domain.StepModelDriven, domain.FailureValidation, 3, nil); d.Retry {
		t.Error("validation retry past budget should give up")
	}
}

func TestDecide_StepOverride(t *testing.T) {
	table := NewTable(domain.RetryPolicy{MaxAttempts: 3})
	override := &domain.RetryPolicy{MaxAttempts: 5}

	if d := table.Decide(domain.StepModelDriven, domain.FailureTransient, 4, override); !d.Retry {
		t.Error("override MaxAttempts=5 should allow attempt 4 to retry")
	}
	if d := table.Decide(domain.StepModelDriven, domain.FailureTransient, 4, nil); d.Retry {
		t.Error("default MaxAttempts=3 should give up at attempt 4")
	}
}

func TestDelay_Curves(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		name    string
		spec    domain.RetryPolicy
		attempt int
		want    time.Duration
	}{
		{"fixed a1", domain.RetryPolicy{Backoff: domain.BackoffFixed, BaseDelay: base, MaxDelay: time.Minute}, 1, base},
		{"fixed a3", domain.RetryPolicy{Backoff: domain.BackoffFixed, BaseDelay: base, MaxDelay: time.Minute}, 3, base},
		{"linear a1", domain.RetryPolicy{Backoff: domain.BackoffLinear, BaseDelay: base, MaxDelay: time.Minute}, 1, base},
		{"linear a3", domain.RetryPolicy{Backoff: domain.BackoffLinear, BaseDelay: base, MaxDelay: time.Minute}, 3, 300 * time.Millisecond},
		{"exponential a1", domain.RetryPolicy{Backoff: domain.BackoffExponential, BaseDelay: base, MaxDelay: time.Minute}, 1, base},
		{"exponential a2", domain.RetryPolicy{Backoff: domain.BackoffExponential, BaseDelay: base, MaxDelay: time.Minute}, 2, 200 * time.Millisecond},
		{"exponential a4", domain.RetryPolicy{Backoff: domain.BackoffExponential, BaseDelay: base, MaxDelay: time.Minute}, 4, 800 * time.Millisecond},
		{"exponential capped", domain.RetryPolicy{Backoff: domain.BackoffExponential, BaseDelay: base, MaxDelay: 250 * time.Millisecond}, 4, 250 * time.Millisecond},
		{"exponential deep attempt stays capped", domain.RetryPolicy{Backoff: domain.BackoffExponential, BaseDelay: base, MaxDelay: time.Second}, 64, time.Second},
	}

	for _, tt := range tests {
		if got := Delay(tt.spec, tt.attempt); got != tt.want {
			t.Errorf("%s: Delay() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewTable_FillsDefaults(t *testing.T) {
	table := NewTable(domain.RetryPolicy{})
	def := table.Default()

	if def.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", def.MaxAttempts, DefaultMaxAttempts)
	}
	if def.ValidationMaxAttempts != DefaultValidationMaxAttempts {
		t.Errorf("ValidationMaxAttempts = %d, want %d", def.ValidationMaxAttempts, DefaultValidationMaxAttempts)
	}
	if def.BaseDelay != DefaultBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", def.BaseDelay, DefaultBaseDelay)
	}
	if def.MaxDelay != DefaultMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", def.MaxDelay, DefaultMaxDelay)
	}
	if def.Backoff != domain.BackoffExponential {
		t.Errorf("Backoff = %q, want exponential", def.Backoff)
	}
}
