package compile

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

// Handler returns the tool handler function for compile-query
func Handler(deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCompile(ctx, request, deps)
	}
}

func handleCompile(_ context.Context, request mcp.CallToolRequest, deps *tools.ToolDependencies) (*mcp.CallToolResult, error) {
	metrics.ObserveTool(ToolName)

	var args tools.SearchInput
	if err := request.BindArguments(&args); err != nil {
		slog.Error("error binding arguments", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	req, err := args.Request()
	if err != nil {
		slog.Error("error converting arguments", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	compiled, err := query.Compile(deps.Compile, req)
	metrics.ObserveCompile(err)
	if err != nil {
		return tools.ErrorResult(ToolName, err), nil
	}

	return tools.JSONResult(ToolName, compiled), nil
}
