// Package modelhttp ships a model capability speaking a small JSON protocol
// over HTTP: POST the prompt and session context, read back the model text.
// Useful against sidecar gateways that front the actual provider.
package modelhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/model"
)

// Config selects the gateway endpoint and credentials.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewDefaultConfig returns the defaults used before env overrides.
func NewDefaultConfig() *Config {
	return &Config{Timeout: model.DefaultTimeout}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GUIDE_MODEL_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("GUIDE_MODEL_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("GUIDE_MODEL_TIMEOUT_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid GUIDE_MODEL_TIMEOUT_MS: %q", v)
		}
		c.Timeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// StatusError reports a non-200 gateway reply.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model gateway returned HTTP %d: %s", e.Status, e.Body)
}

// Client posts model requests to the configured endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New builds a client from config.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New("modelhttp: endpoint not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = model.DefaultTimeout
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type wireRequest struct {
	Session string         `json:"session"`
	Step    string         `json:"step"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
	Attempt int            `json:"attempt"`
}

type wireResponse struct {
	Output string `json:"output"`
}

// Call implements model.CallFunc.
func (c *Client) Call(ctx context.Context, req model.Request) (string, error) {
	body, err := json.Marshal(wireRequest{
		Session: req.Session,
		Step:    req.Step,
		Prompt:  req.Prompt,
		Context: req.Context,
		Attempt: req.Attempt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Status: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	var out wireResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal model response: %w", err)
	}
	return out.Output, nil
}

// Classify maps gateway errors to failure classes: timeouts, 429 and 5xx
// are worth retrying; any other status is a configuration or request bug.
func Classify(err error) domain.FailureClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500 {
			return domain.FailureTransient
		}
		return domain.FailureFatal
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureTransient
	}
	return domain.FailureFatal
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
