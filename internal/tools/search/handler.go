package search

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

// Handler returns the tool handler function for search-records
func Handler(deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSearch(ctx, request, deps)
	}
}

func handleSearch(ctx context.Context, request mcp.CallToolRequest, deps *tools.ToolDependencies) (*mcp.CallToolResult, error) {
	if deps.DBService == nil {
		errMessage := "Database service is not initialized"
		slog.Error(errMessage)
		return mcp.NewToolResultError(errMessage), nil
	}

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

	return Run(ctx, deps, ToolName, req)
}

// Run compiles req, executes it with read routing and renders the rows.
// Saved searches share it.
func Run(ctx context.Context, deps *tools.ToolDependencies, tool string, req query.SearchRequest) (*mcp.CallToolResult, error) {
	compiled, err := query.Compile(deps.Compile, req)
	metrics.ObserveCompile(err)
	if err != nil {
		return tools.ErrorResult(tool, err), nil
	}

	slog.Debug("executing search", "tool", tool, "database", deps.DBService.GetDatabaseName(), "query", compiled.Cypher)

	records, err := deps.DBService.ExecuteReadQuery(ctx, compiled.Cypher, compiled.Params)
	if err != nil {
		return tools.ErrorResult(tool, err), nil
	}

	response, err := deps.DBService.Neo4jRecordsToJSON(records)
	if err != nil {
		slog.Error("error formatting query results", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response), nil
}
