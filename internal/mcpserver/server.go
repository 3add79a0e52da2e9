// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/docservice"
)

const formatURI = "ansuz://document-format"

// Server wraps the MCP server with ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all ansuz tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("index_path",
		mcp.WithDescription("Index a .norg file or a directory of the workspace. "+
			"Directories only re-parse files modified since they were last indexed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to index, absolute or relative to the workspace root")),
	), s.indexPath)

	s.mcp.AddTool(mcp.NewTool("category_query",
		mcp.WithDescription("Find documents by category. By default a document must carry every "+
			"category; set any to true to match documents carrying at least one."),
		mcp.WithArray("categories", mcp.Required(), mcp.Description("Category names"), mcp.WithStringItems()),
		mcp.WithBoolean("any", mcp.Description("Match any category instead of all")),
	), s.categoryQuery)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List every distinct category in the index."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a read-only SQL query against the index. "+
			"Read the ansuz://document-format resource for the table layout."),
		mcp.WithString("query", mcp.Required(), mcp.Description("SQL statement with ? placeholders")),
		mcp.WithArray("params", mcp.Description("Positional string parameters"), mcp.WithStringItems()),
	), s.runQuery)

	s.mcp.AddTool(mcp.NewTool("document_tasks",
		mcp.WithDescription("Return the stored task tree of one indexed document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path, absolute or relative to the workspace root")),
	), s.documentTasks)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format",
			mcp.WithResourceDescription("Norg constructs that ansuz indexes and the index table layout."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrInvalidArgument):
		return mcp.NewToolResultError("invalid argument: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.Index(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rep)
}

func (s *Server) categoryQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := req.RequireStringSlice("categories")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.svc.CategoryQuery(ctx, cats, req.GetBool("any", false))
	if err != nil {
		return toolError(err), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	return jsonResult(docs)
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.AllCategories(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(cats, "\n")), nil
}

func (s *Server) runQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.UserQuery(ctx, q, req.GetStringSlice("params", nil))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rows)
}

func (s *Server) documentTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tasks, err := s.svc.Tasks(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tasks)
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormat,
		},
	}, nil
}
