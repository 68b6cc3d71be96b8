package search

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

const ToolName = "search-records"

// Spec returns the MCP tool specification for search-records
func Spec() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(`Searches records with a structured filter and returns them with the requested aggregates.

Takes the same input as compile-query and runs the compiled query with read routing. The result is one row holding a "records" list:
- without groupBy, one entry per matching record with all its properties, its label under "__label" and one entry per aggregate key
- with groupBy, one entry per group holding only the aggregate keys

Paging (skip, limit) counts records, or groups when grouping. limit is clamped to 1..1000 and defaults to 100.`),
		mcp.WithInputSchema[tools.SearchInput](),
		mcp.WithTitleAnnotation("Search Records"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}
