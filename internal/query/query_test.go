package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/order"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
)

const recordLabel = "[l IN labels(record) WHERE l <> '__RECORD__'][0]"

func TestCompile_EmptyRequest(t *testing.T) {
	compiled, err := Compile(compilectx.Default(), SearchRequest{Labels: []string{"Person"}})
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (record:__RECORD__:Person)\n"+
			"WITH DISTINCT record\n"+
			"ORDER BY record.__id DESC\n"+
			"SKIP $skip\n"+
			"LIMIT $limit\n"+
			"RETURN collect(DISTINCT record {.*, __label: "+recordLabel+"}) AS records",
		compiled.Cypher)
	assert.Equal(t, map[string]any{"skip": 0, "limit": order.DefaultLimit}, compiled.Params)
	assert.Equal(t, map[string]string{"$record": "record"}, compiled.Aliases)
}

func TestCompile_FilterAggregateAndSort(t *testing.T) {
	req := SearchRequest{
		Labels:    []string{"Person"},
		Where:     json.RawMessage(`{"name": "Ada", "POST": {"$alias": "$post", "title": {"$contains": "graph"}}}`),
		Aggregate: json.RawMessage(`{"total": {"fn": "count", "alias": "$post"}}`),
		OrderBy:   json.RawMessage(`{"total": "desc"}`),
		Skip:      10,
		Limit:     5000,
	}

	compiled, err := Compile(compilectx.Default(), req)
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (record:__RECORD__:Person)\n"+
			"MATCH (record)--(record1:__RECORD__:POST)\n"+
			"WHERE record.name = $p0 AND toLower(toString(record1.title)) CONTAINS toLower($p1)\n"+
			"WITH record, count(DISTINCT record1) AS total\n"+
			"ORDER BY total DESC\n"+
			"SKIP $skip\n"+
			"LIMIT $limit\n"+
			"RETURN collect(DISTINCT record {.*, __label: "+recordLabel+", total: total}) AS records",
		compiled.Cypher)
	assert.Equal(t, map[string]any{"p0": "Ada", "p1": "graph", "skip": 10, "limit": order.MaxLimit}, compiled.Params)
	assert.Equal(t, map[string]string{"$record": "record", "$post": "record1"}, compiled.Aliases)
}

func TestCompile_PaginationClamped(t *testing.T) {
	tests := []struct {
		name      string
		skip      int
		limit     int
		wantSkip  int
		wantLimit int
	}{
		{"zero limit", 0, 0, 0, 100},
		{"limit above maximum", 0, 5000, 0, 1000},
		{"negative skip", -5, 20, 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Compile(compilectx.Default(), SearchRequest{Skip: tt.skip, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkip, compiled.Params["skip"])
			assert.Equal(t, tt.wantLimit, compiled.Params["limit"])
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	req := SearchRequest{
		Where:     json.RawMessage(`{"$or": [{"age": {"$gte": 18}}, {"TEAM": {"name": "core"}}], "POST": {"$alias": "$post"}}`),
		Aggregate: json.RawMessage(`{"posts": {"fn": "collect", "alias": "$post", "limit": 5}, "n": {"fn": "count", "alias": "$post"}}`),
	}

	first, err := Compile(compilectx.Default(), req)
	require.NoError(t, err)
	second, err := Compile(compilectx.Default(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompile_ImplicitAndEqualsExplicitAnd(t *testing.T) {
	implicit, err := Compile(compilectx.Default(), SearchRequest{Where: json.RawMessage(`{"a": 1, "b": 2}`)})
	require.NoError(t, err)
	explicit, err := Compile(compilectx.Default(), SearchRequest{Where: json.RawMessage(`{"$and": [{"a": 1}, {"b": 2}]}`)})
	require.NoError(t, err)

	assert.Equal(t, implicit.Cypher, explicit.Cypher)
	assert.Equal(t, implicit.Params, explicit.Params)
}

func TestCompile_GroupBy(t *testing.T) {
	req := SearchRequest{
		Labels:    []string{"Order"},
		Aggregate: json.RawMessage(`{"category": "$record.category", "revenue": {"fn": "sum", "field": "amount"}}`),
		GroupBy:   []string{"category"},
		OrderBy:   json.RawMessage(`{"revenue": "desc"}`),
	}

	compiled, err := Compile(compilectx.Default(), req)
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (record:__RECORD__:Order)\n"+
			"WITH record.category AS category, sum(record.amount) AS revenue\n"+
			"ORDER BY revenue DESC\n"+
			"SKIP $skip\n"+
			"LIMIT $limit\n"+
			"RETURN collect({category: category, revenue: revenue}) AS records",
		compiled.Cypher)
}

func TestCompile_Scope(t *testing.T) {
	ctx := compilectx.Default().WithScope(map[string]any{"projectId": "p1"})

	compiled, err := Compile(ctx, SearchRequest{Labels: []string{"Person"}, Where: json.RawMessage(`{"POST": {"title": "x"}}`)})
	require.NoError(t, err)

	assert.Contains(t, compiled.Cypher, "MATCH (record:__RECORD__:Person {projectId: $scope0})")
	assert.Contains(t, compiled.Cypher, "MATCH (record)--(record1:__RECORD__:POST {projectId: $scope0})")
	assert.Equal(t, "p1", compiled.Params["scope0"])
}

func TestCompile_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      SearchRequest
		sentinel error
	}{
		{"unknown operator", SearchRequest{Where: json.RawMessage(`{"age": {"$between": [1, 2]}}`)}, errs.ErrUnknownOperator},
		{"unknown function", SearchRequest{Aggregate: json.RawMessage(`{"x": {"fn": "median", "field": "age"}}`)}, errs.ErrUnknownFunction},
		{"unknown alias in aggregate", SearchRequest{Aggregate: json.RawMessage(`{"x": {"fn": "count", "alias": "$nope"}}`)}, errs.ErrUnknownAlias},
		{"unknown alias in orderBy", SearchRequest{OrderBy: json.RawMessage(`{"$nope.name": "asc"}`)}, errs.ErrUnknownAlias},
		{"bad direction", SearchRequest{OrderBy: json.RawMessage(`"sideways"`)}, errs.ErrInvalidDirection},
		{"bad label", SearchRequest{Labels: []string{"`;"}}, errs.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Compile(compilectx.Default(), tt.req)
			require.Error(t, err)
			assert.Nil(t, compiled)
			assert.True(t, errs.IsCompile(err), "got %v", err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestCompile_MalformedJSON(t *testing.T) {
	_, err := Compile(compilectx.Default(), SearchRequest{Where: json.RawMessage(`{"a": `)})
	require.Error(t, err)
	assert.True(t, errs.IsCompile(err))
}

func TestCompile_LenientAliases(t *testing.T) {
	ctx := compilectx.Default()
	ctx.LenientAliases = true

	compiled, err := Compile(ctx, SearchRequest{
		Aggregate: json.RawMessage(`{"x": {"fn": "count", "alias": "$nope"}}`),
		OrderBy:   json.RawMessage(`{"$nope.name": "asc"}`),
	})
	require.NoError(t, err)
	assert.NotContains(t, compiled.Cypher, "ORDER BY")
	assert.Contains(t, compiled.Cypher, "WITH DISTINCT record\n")
}

func TestCompileParsed(t *testing.T) {
	compiled, err := CompileParsed(compilectx.Default(), Parsed{
		Labels: []string{"Person"},
		Where:  where.Eq("name", "Ada"),
		Page:   order.NewPage(0, 10),
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.Cypher, "WHERE record.name = $p0\n")
	assert.Equal(t, "Ada", compiled.Params["p0"])
	assert.Equal(t, 10, compiled.Params["limit"])
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"labels": ["Person"], "where": {"b": 1, "a": 2}, "skip": 5, "limit": 20}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, req.Labels)
	assert.JSONEq(t, `{"b": 1, "a": 2}`, string(req.Where))
	assert.Equal(t, 5, req.Skip)
	assert.Equal(t, 20, req.Limit)

	_, err = ParseRequest([]byte(`{"labels": "Person"}`))
	require.Error(t, err)
	assert.True(t, errs.IsCompile(err))
	assert.ErrorIs(t, err, errs.ErrInvalidJSON)
}
