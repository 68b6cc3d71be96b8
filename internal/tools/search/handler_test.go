package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	db "github.com/mkd-neo4j/neo4j-query-compiler/internal/database/mocks"
	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/search"
)

func request(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      search.ToolName,
			Arguments: args,
		},
	}
}

func TestSearchHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("runs the compiled query", func(t *testing.T) {
		mockDB := db.NewMockService(ctrl)
		mockDB.EXPECT().GetDatabaseName().Return("neo4j").AnyTimes()

		records := []*neo4j.Record{{Keys: []string{"records"}, Values: []any{[]any{}}}}
		mockDB.EXPECT().
			ExecuteReadQuery(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
				assert.Contains(t, cypher, "MATCH (record:__RECORD__:Person)")
				assert.Contains(t, cypher, "WHERE record.age >= $p0")
				assert.Equal(t, int64(18), params["p0"])
				assert.Equal(t, 100, params["limit"])
				return records, nil
			})
		mockDB.EXPECT().Neo4jRecordsToJSON(records).Return(`[{"records": []}]`, nil)

		deps := &tools.ToolDependencies{DBService: mockDB, Compile: compilectx.Default()}
		result, err := search.Handler(deps)(context.Background(), request(map[string]any{
			"labels": []any{"Person"},
			"where":  map[string]any{"age": map[string]any{"$gte": 18}},
		}))

		require.NoError(t, err)
		require.False(t, result.IsError)
		assert.Equal(t, `[{"records": []}]`, result.Content[0].(mcp.TextContent).Text)
	})

	t.Run("compile errors never reach the database", func(t *testing.T) {
		mockDB := db.NewMockService(ctrl)

		deps := &tools.ToolDependencies{DBService: mockDB, Compile: compilectx.Default()}
		result, err := search.Handler(deps)(context.Background(), request(map[string]any{
			"orderBy": "sideways",
		}))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content[0].(mcp.TextContent).Text, "request rejected")
	})

	t.Run("database failure is reported as execution error", func(t *testing.T) {
		mockDB := db.NewMockService(ctrl)
		mockDB.EXPECT().GetDatabaseName().Return("neo4j").AnyTimes()
		mockDB.EXPECT().
			ExecuteReadQuery(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errs.Execution("read", errors.New("connection refused")))

		deps := &tools.ToolDependencies{DBService: mockDB, Compile: compilectx.Default()}
		result, err := search.Handler(deps)(context.Background(), request(map[string]any{}))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		text := result.Content[0].(mcp.TextContent).Text
		assert.Contains(t, text, "execution failed")
		assert.Contains(t, text, "connection refused")
	})

	t.Run("missing database service", func(t *testing.T) {
		result, err := search.Handler(&tools.ToolDependencies{})(context.Background(), request(nil))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content[0].(mcp.TextContent).Text, "Database service is not initialized")
	})
}
