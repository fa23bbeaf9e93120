package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/snippetbox/config"
	"github.com/isdmx/snippetbox/engine"
	"github.com/isdmx/snippetbox/policy"
	"github.com/isdmx/snippetbox/sandbox"
)

// Version is reported to MCP clients during initialization
const Version = "0.1.0"

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	engine    *engine.Engine
	mcpServer *server.MCPServer
}

// checkResult is the payload of the check_snippet tool
type checkResult struct {
	Allowed    bool                `json:"allowed"`
	Message    string              `json:"message,omitempty"`
	Violations []*policy.Violation `json:"violations,omitempty"`
}

// runResult is the payload of the run_snippet tool
type runResult struct {
	sandbox.Outcome
	Rendered string `json:"rendered"`
}

// policyResult is the payload of the describe_policy tool
type policyResult struct {
	Allowed  []string `json:"allowed"`
	Denied   []string `json:"denied"`
	BudgetMS int64    `json:"budget_ms"`
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, eng *engine.Engine) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		engine: eng,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Duration("sandbox.budget", eng.Budget()),
		zap.Int("sandbox.max_output_kb", cfg.Sandbox.MaxOutputKB),
		zap.Uint64("sandbox.max_steps", cfg.Sandbox.MaxSteps),
		zap.String("policy.file", cfg.Policy.File),
		zap.Strings("policy.deny", cfg.Policy.Deny),
		zap.Strings("policy.disable", cfg.Policy.Disable),
		zap.Bool("metrics.enabled", cfg.Metrics.Enabled),
	)

	// Recovery turns a panicking tool handler into a tool error.
	s.mcpServer = server.NewMCPServer("snippetbox", Version, server.WithRecovery())

	s.registerCheckSnippetTool()
	s.registerRunSnippetTool()
	s.registerDescribePolicyTool()

	return s, nil
}

func codeSchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Snippet source code",
			},
		},
		Required: []string{"code"},
	}
}

func (s *MCPServer) registerCheckSnippetTool() {
	tool := mcp.Tool{
		Name:        "check_snippet",
		Description: "Check a snippet against the sandbox policy without running it",
		InputSchema: codeSchema(),
	}

	s.mcpServer.AddTool(tool, s.handleCheckSnippet)
}

func (s *MCPServer) registerRunSnippetTool() {
	tool := mcp.Tool{
		Name:        "run_snippet",
		Description: "Check a snippet and, if it is allowed, run it within the time budget",
		InputSchema: codeSchema(),
	}

	s.mcpServer.AddTool(tool, s.handleRunSnippet)
}

func (s *MCPServer) registerDescribePolicyTool() {
	tool := mcp.Tool{
		Name:        "describe_policy",
		Description: "List the names a snippet may use, the names it may not, and the time budget",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleDescribePolicy)
}

func (s *MCPServer) handleCheckSnippet(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	result := checkResult{Allowed: true}
	if violations := s.engine.Violations(code); len(violations) > 0 {
		result = checkResult{
			Message:    violations[0].Error(),
			Violations: violations,
		}
	}

	s.logger.Debug("snippet checked",
		zap.Bool("allowed", result.Allowed),
		zap.Int("violations", len(result.Violations)))

	return jsonResult(result)
}

func (s *MCPServer) handleRunSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	outcome := s.engine.Run(ctx, code)

	return jsonResult(runResult{
		Outcome:  outcome,
		Rendered: s.engine.Render(outcome),
	})
}

func (s *MCPServer) handleDescribePolicy(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := s.engine.Catalog()

	return jsonResult(policyResult{
		Allowed:  catalog.AllowedNames(),
		Denied:   catalog.DeniedNames(),
		BudgetMS: s.engine.Budget().Milliseconds(),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
