package compile_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/compile"
)

func callTool(t *testing.T, deps *tools.ToolDependencies, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Name = compile.ToolName
	request.Params.Arguments = args

	result, err := compile.Handler(deps)(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestCompileHandler(t *testing.T) {
	deps := &tools.ToolDependencies{Compile: compilectx.Default()}

	t.Run("compiles a search", func(t *testing.T) {
		result := callTool(t, deps, map[string]any{
			"labels": []any{"Person"},
			"where":  map[string]any{"name": "Ada"},
			"limit":  10,
		})
		require.False(t, result.IsError, resultText(t, result))

		var compiled struct {
			Cypher  string            `json:"cypher"`
			Params  map[string]any    `json:"params"`
			Aliases map[string]string `json:"aliases"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &compiled))

		assert.Contains(t, compiled.Cypher, "MATCH (record:__RECORD__:Person)\nWHERE record.name = $p0\n")
		assert.Equal(t, "Ada", compiled.Params["p0"])
		assert.Equal(t, float64(10), compiled.Params["limit"])
		assert.Equal(t, map[string]string{"$record": "record"}, compiled.Aliases)
	})

	t.Run("orderBy array keeps priority", func(t *testing.T) {
		result := callTool(t, deps, map[string]any{
			"orderBy": []any{
				map[string]any{"name": "asc"},
				map[string]any{"age": "desc"},
			},
		})
		require.False(t, result.IsError, resultText(t, result))
		assert.Contains(t, resultText(t, result), "ORDER BY record.name ASC, record.age DESC")
	})

	t.Run("rejects an unknown operator", func(t *testing.T) {
		result := callTool(t, deps, map[string]any{
			"where": map[string]any{"age": map[string]any{"$foo": 1}},
		})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "request rejected")
		assert.Contains(t, resultText(t, result), "unknown operator")
	})

	t.Run("rejects an unknown alias", func(t *testing.T) {
		result := callTool(t, deps, map[string]any{
			"aggregate": map[string]any{"n": map[string]any{"fn": "count", "alias": "$missing"}},
		})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "unknown alias")
	})

	t.Run("invalid argument types", func(t *testing.T) {
		result := callTool(t, deps, map[string]any{"labels": "Person"})
		assert.True(t, result.IsError)
	})
}

func TestSpec(t *testing.T) {
	spec := compile.Spec()
	assert.Equal(t, compile.ToolName, spec.Name)
	require.NotNil(t, spec.Annotations.ReadOnlyHint)
	assert.True(t, *spec.Annotations.ReadOnlyHint)
}
