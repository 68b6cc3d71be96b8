package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
)

// ErrorResult turns err into a tool error. Rejections (nothing ran) and
// execution failures (the engine may have written) are worded differently so
// callers can tell them apart.
func ErrorResult(tool string, err error) *mcp.CallToolResult {
	var msg string
	switch {
	case errs.IsRejection(err):
		msg = fmt.Sprintf("request rejected, nothing was executed: %v", err)
	case errs.IsExecution(err):
		msg = fmt.Sprintf("execution failed: %v", err)
	default:
		msg = err.Error()
	}
	slog.Error("tool call failed", "tool", tool, "kind", metrics.Outcome(err), "error", err)
	return mcp.NewToolResultError(msg)
}

// JSONResult renders v as indented JSON text.
func JSONResult(tool string, v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("error formatting tool result", "tool", tool, "error", err)
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
