package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"flowsaas/backend/internal/auth"
	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/services"
	"flowsaas/backend/pkg/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the template marketplace to MCP clients: agents can browse
// the catalog, submit runs and check execution status.
type Server struct {
	mcpServer *server.MCPServer
	store     repository.Store
	runs      *services.RunService
}

func NewServer(store repository.Store, runs *services.RunService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"FlowSaaS Marketplace",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		store: store,
		runs:  runs,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_templates",
			mcp.WithDescription("List the active workflow templates in the marketplace"),
		),
		s.handleListTemplates,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_template",
			mcp.WithDescription("Run a marketplace template with the given inputs. Credits are charged to the calling account."),
			mcp.WithString("template_id", mcp.Required(), mcp.Description("The ID of the template to run")),
			mcp.WithObject("inputs", mcp.Description("Input values keyed by field label or field id")),
		),
		s.handleRunTemplate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_execution",
			mcp.WithDescription("Get the current state of an execution, refreshed from the engine when still running"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the execution")),
		),
		s.handleGetExecution,
	)
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list templates: %v", err)), nil
	}

	out := make([]models.TemplatePublic, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.Public())
	}
	jsonBytes, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	templateID, ok := args["template_id"].(string)
	if !ok || templateID == "" {
		return mcp.NewToolResultError("Missing required parameter: template_id"), nil
	}

	inputs := map[string]string{}
	if raw, ok := args["inputs"].(map[string]interface{}); ok {
		for k, v := range raw {
			inputs[k] = fmt.Sprintf("%v", v)
		}
	}

	// runs bill the account resolved by the auth middleware; the transport
	// never gets to name who pays
	user := auth.UserFromContext(ctx)
	if user == nil {
		return mcp.NewToolResultError("Not authenticated"), nil
	}

	resp, err := s.runs.Run(ctx, templateID, user, inputs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run template: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(resp)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	user := auth.UserFromContext(ctx)
	if user == nil {
		return mcp.NewToolResultError("Not authenticated"), nil
	}

	exec, err := s.runs.SyncStatus(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get execution: %v", err)), nil
	}
	if exec.UserID != user.ID && !user.IsAdmin {
		return mcp.NewToolResultError("Execution not found"), nil
	}

	jsonBytes, _ := json.Marshal(exec)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
