package guide_test

import (
	"errors"
	"strings"
	"testing"

	guide "github.com/rluijk/guided-llm-cli"
)

func TestSanitizeInputSizeLimit(t *testing.T) {
	limit := guide.DefaultMaxInputSize

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", limit - 1, false},
		{"exact limit", limit, false},
		{"over limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guide.SanitizeInput(strings.Repeat("a", tt.size))
			if tt.wantErr && !errors.Is(err, guide.ErrInputTooLarge) {
				t.Errorf("SanitizeInput() error = %v, want ErrInputTooLarge", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("SanitizeInput() unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeInputStripsControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Hello World", "Hello World"},
		{"safe controls survive", "line1\nline2\ttabbed", "line1\nline2\ttabbed"},
		{"ansi escape stripped", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"null byte stripped", "null\x00byte", "nullbyte"},
		{"bell stripped", "ding\x07", "ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guide.SanitizeInput(tt.input)
			if err != nil {
				t.Fatalf("SanitizeInput() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("SanitizeInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeInputEnvOverride(t *testing.T) {
	t.Setenv("GUIDE_MAX_INPUT_SIZE", "10")

	if _, err := guide.SanitizeInput("12345678901"); !errors.Is(err, guide.ErrInputTooLarge) {
		t.Errorf("SanitizeInput() error = %v, want ErrInputTooLarge", err)
	}
	if _, err := guide.SanitizeInput("12345"); err != nil {
		t.Errorf("SanitizeInput() unexpected error: %v", err)
	}
}

func TestSanitizeInputRejectsInvalidUTF8(t *testing.T) {
	if _, err := guide.SanitizeInput("\xbd\xb2\x3d\xbc"); !errors.Is(err, guide.ErrInvalidUTF8) {
		t.Errorf("SanitizeInput() error = %v, want ErrInvalidUTF8", err)
	}
}
