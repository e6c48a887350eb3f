package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

type stubEngine struct {
	state     *domain.SessionState
	err       error
	ids       []string
	lastInput any
}

func (s *stubEngine) Resume(ctx context.Context, id string, input any) (*domain.SessionState, error) {
	s.lastInput = input
	return s.state, s.err
}

func (s *stubEngine) Status(ctx context.Context, id string) (*domain.SessionState, error) {
	return s.state, s.err
}

func (s *stubEngine) Cancel(ctx context.Context, id string) (*domain.SessionState, error) {
	return s.state, s.err
}

func (s *stubEngine) Sessions(ctx context.Context) ([]string, error) { return s.ids, s.err }

func (s *stubEngine) Workflow() *domain.Workflow { return &domain.Workflow{Name: "triage"} }

func suspendedState() *domain.SessionState {
	return &domain.SessionState{
		ID:       "s1",
		Workflow: "triage",
		Status:   domain.StatusSuspended,
		Current:  "ask",
		Awaiting: "How bad is it?",
		Context:  map[string]any{"report": "disk full"},
	}
}

func TestViewOf(t *testing.T) {
	view := viewOf(suspendedState())

	assert.Equal(t, "s1", view.ID)
	assert.Equal(t, "suspended", view.Status)
	assert.Equal(t, "ask", view.Current)
	assert.Equal(t, "How bad is it?", view.Awaiting)
	assert.Equal(t, "disk full", view.Context["report"])
	assert.False(t, view.Terminal)

	done := suspendedState()
	done.Status = domain.StatusCompleted
	assert.True(t, viewOf(done).Terminal)
}

func TestHandlersRequireSessionID(t *testing.T) {
	s := NewServer(&stubEngine{state: suspendedState()}, "test")
	ctx := context.Background()

	_, err := s.handleStatus(ctx, mcp.CallToolRequest{}, map[string]any{})
	assert.ErrorContains(t, err, "session_id")

	_, err = s.handleResume(ctx, mcp.CallToolRequest{}, map[string]any{})
	assert.ErrorContains(t, err, "session_id")

	_, err = s.handleCancel(ctx, mcp.CallToolRequest{}, map[string]any{})
	assert.ErrorContains(t, err, "session_id")
}

func TestHandleResumeForwardsInput(t *testing.T) {
	eng := &stubEngine{state: suspendedState()}
	s := NewServer(eng, "test")
	ctx := context.Background()

	_, err := s.handleResume(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "s1",
		"input":      "high",
	})
	require.NoError(t, err)
	assert.Equal(t, "high", eng.lastInput)

	_, err = s.handleResume(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.Nil(t, eng.lastInput)
}

func TestHandleStatusMapsState(t *testing.T) {
	s := NewServer(&stubEngine{state: suspendedState()}, "test")

	view, err := s.handleStatus(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"session_id": "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "suspended", view.Status)
	assert.Equal(t, "How bad is it?", view.Awaiting)
}

func TestHandlerErrorsSurface(t *testing.T) {
	s := NewServer(&stubEngine{err: domain.ErrSessionNotFound}, "test")

	_, err := s.handleStatus(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"session_id": "nope",
	})
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestHandleListSessions(t *testing.T) {
	s := NewServer(&stubEngine{ids: []string{"a", "b"}}, "test")

	result, err := s.handleListSessions(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}
