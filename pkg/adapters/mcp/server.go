// Package mcp exposes sessions as Model Context Protocol tools, so agents
// can list, inspect, resume, and cancel workflow sessions over stdio or SSE.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Engine is the orchestrator surface the MCP tools drive.
type Engine interface {
	Resume(ctx context.Context, id string, input any) (*domain.SessionState, error)
	Status(ctx context.Context, id string) (*domain.SessionState, error)
	Cancel(ctx context.Context, id string) (*domain.SessionState, error)
	Sessions(ctx context.Context) ([]string, error)
	Workflow() *domain.Workflow
}

// StateView is the wire shape of a session snapshot returned by the tools.
// History stays server-side; agents get position, status, and context.
type StateView struct {
	ID       string         `json:"id"`
	Workflow string         `json:"workflow"`
	Status   string         `json:"status"`
	Current  string         `json:"current"`
	Awaiting string         `json:"awaiting,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Context  map[string]any `json:"context"`
	Terminal bool           `json:"terminal"`
}

func viewOf(state *domain.SessionState) StateView {
	return StateView{
		ID:       state.ID,
		Workflow: state.Workflow,
		Status:   string(state.Status),
		Current:  state.Current,
		Awaiting: state.Awaiting,
		Reason:   state.Reason,
		Context:  state.Context,
		Terminal: state.Terminal(),
	}
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server for an engine.
func NewServer(engine Engine, version string) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("guide-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over Server-Sent Events until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the ids of all persisted sessions."),
	), s.handleListSessions)

	statusTool := mcp.NewTool("session_status",
		mcp.WithDescription("Get the current snapshot of a session: position, status, context, and pending prompt."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to inspect")),
		mcp.WithOutputSchema[StateView](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	resumeTool := mcp.NewTool("resume_session",
		mcp.WithDescription("Continue a session. Suspended sessions need input; interrupted ones re-execute their current step when input is omitted."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to continue")),
		mcp.WithString("input", mcp.Description("Answer to the pending prompt (optional)")),
		mcp.WithOutputSchema[StateView](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	cancelTool := mcp.NewTool("cancel_session",
		mcp.WithDescription("Cancel a session. Terminal sessions cannot be cancelled."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to cancel")),
		mcp.WithOutputSchema[StateView](),
	)
	s.mcpServer.AddTool(cancelTool, mcp.NewStructuredToolHandler(s.handleCancel))
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.engine.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StateView, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return StateView{}, fmt.Errorf("session_id is required")
	}

	state, err := s.engine.Status(ctx, id)
	if err != nil {
		return StateView{}, fmt.Errorf("status failed: %w", err)
	}
	return viewOf(state), nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StateView, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return StateView{}, fmt.Errorf("session_id is required")
	}

	var input any
	if v, ok := args["input"].(string); ok && v != "" {
		clean, err := guide.SanitizeInput(v)
		if err != nil {
			return StateView{}, err
		}
		input = clean
	}

	state, err := s.engine.Resume(ctx, id, input)
	if err != nil {
		return StateView{}, fmt.Errorf("resume failed: %w", err)
	}
	return viewOf(state), nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StateView, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return StateView{}, fmt.Errorf("session_id is required")
	}

	state, err := s.engine.Cancel(ctx, id)
	if err != nil {
		return StateView{}, fmt.Errorf("cancel failed: %w", err)
	}
	return viewOf(state), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("guide://workflow", "Loaded Workflow Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		wf := s.engine.Workflow()

		type stepView struct {
			ID     string `json:"id"`
			Kind   string `json:"kind"`
			Prompt string `json:"prompt,omitempty"`
		}
		view := struct {
			Name    string     `json:"name"`
			Version string     `json:"version,omitempty"`
			Start   string     `json:"start"`
			Steps   []stepView `json:"steps"`
		}{Name: wf.Name, Version: wf.Version, Start: wf.Start}
		for _, step := range wf.Steps {
			view.Steps = append(view.Steps, stepView{ID: step.ID, Kind: string(step.Kind), Prompt: step.Prompt})
		}

		jsonBytes, err := json.Marshal(view)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal workflow: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "guide://workflow",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
