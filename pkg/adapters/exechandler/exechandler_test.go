package exechandler_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rluijk/guided-llm-cli/pkg/adapters/exechandler"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

func shell(t *testing.T, script string) []string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures are POSIX-only")
	}
	return []string{"sh", "-c", script}
}

func TestPlainTextOutput(t *testing.T) {
	fn, err := exechandler.New(shell(t, `echo "  hello  "`))
	require.NoError(t, err)

	out, err := fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out, "stdout should be trimmed")
}

func TestJSONOutputIsDecoded(t *testing.T) {
	fn, err := exechandler.New(shell(t, `echo '{"total": 42}'`))
	require.NoError(t, err)

	out, err := fn(context.Background(), nil)
	require.NoError(t, err)

	decoded, ok := out.(map[string]any)
	require.True(t, ok, "JSON stdout should decode, got %T", out)
	assert.Equal(t, float64(42), decoded["total"])
}

func TestContextArrivesAsEnv(t *testing.T) {
	fn, err := exechandler.New(shell(t, `echo "$GUIDE_ARG_MSG:$GUIDE_ARG_MY_KEY"`))
	require.NoError(t, err)

	out, err := fn(context.Background(), map[string]any{
		"msg":    "secret",
		"my-key": []any{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret:[1,2]", out)
}

func TestNonZeroExitIsFatal(t *testing.T) {
	fn, err := exechandler.New(shell(t, `echo "boom" >&2; exit 1`))
	require.NoError(t, err)

	_, err = fn(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.FailureFatal, domain.ClassOf(err))
	assert.Contains(t, err.Error(), "boom", "stderr should surface in the reason")
}

func TestTempfailExitIsTransient(t *testing.T) {
	fn, err := exechandler.New(shell(t, `exit 75`))
	require.NoError(t, err)

	_, err = fn(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.FailureTransient, domain.ClassOf(err))

	var stepErr *domain.StepError
	assert.True(t, errors.As(err, &stepErr))
}

func TestEmptyArgvRejected(t *testing.T) {
	_, err := exechandler.New(nil)
	assert.Error(t, err)
}
