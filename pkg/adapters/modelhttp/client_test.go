package modelhttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rluijk/guided-llm-cli/pkg/adapters/modelhttp"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/model"
)

func TestCallRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"output": `{"next":"even"}`})
	}))
	defer srv.Close()

	client, err := modelhttp.New(&modelhttp.Config{Endpoint: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	out, err := client.Call(context.Background(), model.Request{
		Session: "s1",
		Step:    "decide",
		Prompt:  "even or odd?",
		Context: map[string]any{"total": 4},
		Attempt: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"next":"even"}`, out)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "s1", gotBody["session"])
	assert.Equal(t, "decide", gotBody["step"])
	assert.Equal(t, float64(2), gotBody["attempt"])
}

func TestCallSurfacesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := modelhttp.New(&modelhttp.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), model.Request{Prompt: "hi"})
	require.Error(t, err)

	var statusErr *modelhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.FailureClass
	}{
		{"rate limited", &modelhttp.StatusError{Status: 429}, domain.FailureTransient},
		{"bad gateway", &modelhttp.StatusError{Status: 502}, domain.FailureTransient},
		{"unauthorized", &modelhttp.StatusError{Status: 401}, domain.FailureFatal},
		{"not found", &modelhttp.StatusError{Status: 404}, domain.FailureFatal},
		{"deadline", context.DeadlineExceeded, domain.FailureTransient},
		{"other", assert.AnError, domain.FailureFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, modelhttp.Classify(tc.err))
		})
	}
}

func TestClassifyClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := modelhttp.New(&modelhttp.Config{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), model.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, domain.FailureTransient, modelhttp.Classify(err))
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("GUIDE_MODEL_ENDPOINT", "http://gateway:9000/v1/complete")
	t.Setenv("GUIDE_MODEL_API_KEY", "k")
	t.Setenv("GUIDE_MODEL_TIMEOUT_MS", "1500")

	cfg := modelhttp.NewDefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "http://gateway:9000/v1/complete", cfg.Endpoint)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)

	t.Setenv("GUIDE_MODEL_TIMEOUT_MS", "not-a-number")
	assert.Error(t, cfg.LoadFromEnv())
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := modelhttp.New(&modelhttp.Config{})
	assert.Error(t, err)
	_, err = modelhttp.New(nil)
	assert.Error(t, err)
}
