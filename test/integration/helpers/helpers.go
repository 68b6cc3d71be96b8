//go:build integration

// Package helpers provides the shared fixtures of the integration tests.
package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/bulk"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

// ToolHandler is the signature shared by every tool handler.
type ToolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// TestContext bundles the dependencies of one test and the labels it owns.
type TestContext struct {
	T      *testing.T
	Ctx    context.Context
	Driver neo4j.DriverWithContext
	Deps   *tools.ToolDependencies
	labels []string
}

// NewTestContext builds tool dependencies on driver using the apoc bulk
// executor. Nodes carrying labels from GetUniqueLabel are removed on cleanup.
func NewTestContext(t *testing.T, driver neo4j.DriverWithContext) *TestContext {
	t.Helper()

	service, err := database.NewNeo4jService(driver, "")
	if err != nil {
		t.Fatalf("failed to create database service: %v", err)
	}

	executor, err := bulk.NewExecutor(bulk.StrategyAPOC, service)
	if err != nil {
		t.Fatalf("failed to create bulk executor: %v", err)
	}

	tc := &TestContext{
		T:      t,
		Ctx:    context.Background(),
		Driver: driver,
		Deps: &tools.ToolDependencies{
			DBService:     service,
			Compile:       compilectx.Default(),
			Executor:      executor,
			BulkBatchSize: 2,
			BulkRetries:   1,
		},
	}
	t.Cleanup(tc.cleanup)
	return tc
}

// UseExecutor switches the bulk strategy of the test.
func (tc *TestContext) UseExecutor(strategy string) {
	tc.T.Helper()
	executor, err := bulk.NewExecutor(strategy, tc.Deps.DBService)
	if err != nil {
		tc.T.Fatalf("failed to create %s executor: %v", strategy, err)
	}
	tc.Deps.Executor = executor
}

// GetUniqueLabel returns a label no other test uses.
func (tc *TestContext) GetUniqueLabel(prefix string) string {
	label := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	tc.labels = append(tc.labels, label)
	return label
}

// SeedNode creates a record node with the base label and label.
func (tc *TestContext) SeedNode(label string, props map[string]any) (*neo4j.EagerResult, error) {
	cypher := fmt.Sprintf("CREATE (n:%s:`%s`) SET n = $props RETURN n", tc.Deps.Compile.BaseLabel, label)
	return neo4j.ExecuteQuery(tc.Ctx, tc.Driver, cypher,
		map[string]any{"props": props}, neo4j.EagerResultTransformer)
}

// MustSeedNode is SeedNode failing the test on error.
func (tc *TestContext) MustSeedNode(label string, props map[string]any) {
	tc.T.Helper()
	if _, err := tc.SeedNode(label, props); err != nil {
		tc.T.Fatalf("failed to seed %s node: %v", label, err)
	}
}

// Exec runs cypher against the test database.
func (tc *TestContext) Exec(cypher string, params map[string]any) []*neo4j.Record {
	tc.T.Helper()
	res, err := neo4j.ExecuteQuery(tc.Ctx, tc.Driver, cypher, params, neo4j.EagerResultTransformer)
	if err != nil {
		tc.T.Fatalf("query failed: %v\n%s", err, cypher)
	}
	return res.Records
}

// CountRelationships counts relationships of relType between the two labels.
func (tc *TestContext) CountRelationships(fromLabel, relType, toLabel string) int64 {
	tc.T.Helper()
	cypher := fmt.Sprintf("MATCH (:`%s`)-[r:`%s`]->(:`%s`) RETURN count(r) AS n", fromLabel, relType, toLabel)
	records := tc.Exec(cypher, nil)
	n, _ := records[0].Get("n")
	return n.(int64)
}

// CallTool invokes handler with args and fails the test on a tool error.
func (tc *TestContext) CallTool(handler ToolHandler, args map[string]any) *mcp.CallToolResult {
	tc.T.Helper()
	res := tc.CallToolRaw(handler, args)
	if res.IsError {
		tc.T.Fatalf("tool returned an error: %s", Text(res))
	}
	return res
}

// CallToolRaw invokes handler with args and returns the result as is.
func (tc *TestContext) CallToolRaw(handler ToolHandler, args map[string]any) *mcp.CallToolResult {
	tc.T.Helper()
	res, err := handler(tc.Ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}})
	if err != nil {
		tc.T.Fatalf("tool call failed: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		tc.T.Fatal("tool returned no content")
	}
	return res
}

// Text returns the first text content of res.
func Text(res *mcp.CallToolResult) string {
	if tc, ok := res.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

// ParseJSONResponse decodes the first text content of res into v.
func (tc *TestContext) ParseJSONResponse(res *mcp.CallToolResult, v any) {
	tc.T.Helper()
	if err := json.Unmarshal([]byte(Text(res)), v); err != nil {
		tc.T.Fatalf("failed to parse response: %v\n%s", err, Text(res))
	}
}

// SearchRecords decodes a search-records response into its record maps.
func (tc *TestContext) SearchRecords(res *mcp.CallToolResult) []map[string]any {
	tc.T.Helper()
	var rows []struct {
		Records []map[string]any `json:"records"`
	}
	tc.ParseJSONResponse(res, &rows)
	if len(rows) != 1 {
		tc.T.Fatalf("expected a single result row, got %d", len(rows))
	}
	return rows[0].Records
}

// AssertNodeProperties checks that node carries every expected property.
func (tc *TestContext) AssertNodeProperties(node map[string]any, expected map[string]any) {
	tc.T.Helper()
	for key, want := range expected {
		got, ok := node[key]
		if !ok {
			tc.T.Errorf("property %q missing from %v", key, node)
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			tc.T.Errorf("property %q: expected %v, got %v", key, want, got)
		}
	}
}

// AssertRecordLabel checks the label a search projection reports.
func (tc *TestContext) AssertRecordLabel(record map[string]any, label string) {
	tc.T.Helper()
	if got := record[tc.Deps.Compile.LabelKey]; got != label {
		tc.T.Errorf("expected label %q, got %v", label, got)
	}
}

func (tc *TestContext) cleanup() {
	for _, label := range tc.labels {
		cypher := fmt.Sprintf("MATCH (n:`%s`) DETACH DELETE n", label)
		if _, err := neo4j.ExecuteQuery(context.Background(), tc.Driver, cypher, nil, neo4j.EagerResultTransformer); err != nil {
			tc.T.Logf("cleanup of %s failed: %v", label, err)
		}
	}
}
