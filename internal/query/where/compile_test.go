package where

import (
	"testing"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileJSON(t *testing.T, ctx compilectx.Context, labels []string, doc string) (*Result, map[string]any) {
	t.Helper()
	node, err := Parse([]byte(doc))
	require.NoError(t, err)
	params := ctx.Params()
	res, err := Compile(ctx, node, labels, params)
	require.NoError(t, err)
	return res, params.Values()
}

func compileJSONErr(t *testing.T, doc string) error {
	t.Helper()
	node, err := Parse([]byte(doc))
	if err != nil {
		return err
	}
	_, err = Compile(compilectx.Default(), node, nil, compilectx.Default().Params())
	return err
}

func TestCompile_Predicates(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		predicate string
		params    map[string]any
	}{
		{
			name:      "bare values",
			doc:       `{"name": "Ada", "age": 36}`,
			predicate: "record.name = $p0 AND record.age = $p1",
			params:    map[string]any{"p0": "Ada", "p1": int64(36)},
		},
		{
			name:      "null equality",
			doc:       `{"deletedAt": null}`,
			predicate: "record.deletedAt IS NULL",
			params:    map[string]any{},
		},
		{
			name:      "range on one field",
			doc:       `{"age": {"$gte": 18, "$lt": 65}}`,
			predicate: "(record.age >= $p0 AND record.age < $p1)",
			params:    map[string]any{"p0": int64(18), "p1": int64(65)},
		},
		{
			name:      "set membership",
			doc:       `{"status": {"$in": ["a", "b"]}, "tag": {"$nin": ["x"]}}`,
			predicate: "record.status IN $p0 AND NOT record.tag IN $p1",
			params:    map[string]any{"p0": []any{"a", "b"}, "p1": []any{"x"}},
		},
		{
			name:      "string operators are case-insensitive",
			doc:       `{"name": {"$startsWith": "Ad"}, "bio": {"$contains": "Graph"}, "mail": {"$endsWith": ".org"}}`,
			predicate: "toLower(toString(record.name)) STARTS WITH toLower($p0) AND toLower(toString(record.bio)) CONTAINS toLower($p1) AND toLower(toString(record.mail)) ENDS WITH toLower($p2)",
			params:    map[string]any{"p0": "Ad", "p1": "Graph", "p2": ".org"},
		},
		{
			name:      "existence and type",
			doc:       `{"email": {"$exists": true}, "phone": {"$exists": false}, "score": {"$type": "number"}}`,
			predicate: "record.email IS NOT NULL AND record.phone IS NULL AND any(t IN $p0 WHERE valueType(record.score) STARTS WITH t)",
			params:    map[string]any{"p0": []string{"INTEGER", "FLOAT"}},
		},
		{
			name:      "not equal",
			doc:       `{"status": {"$ne": "closed"}}`,
			predicate: "record.status <> $p0",
			params:    map[string]any{"p0": "closed"},
		},
		{
			name:      "identity",
			doc:       `{"$id": {"$in": ["a", "b"]}}`,
			predicate: "record.__id IN $p0",
			params:    map[string]any{"p0": []any{"a", "b"}},
		},
		{
			name:      "or",
			doc:       `{"$or": [{"age": {"$gt": 30}}, {"name": "Bob"}]}`,
			predicate: "(record.age > $p0 OR record.name = $p1)",
			params:    map[string]any{"p0": int64(30), "p1": "Bob"},
		},
		{
			name:      "not",
			doc:       `{"$not": {"name": "x"}}`,
			predicate: "NOT (record.name = $p0)",
			params:    map[string]any{"p0": "x"},
		},
		{
			name:      "nor",
			doc:       `{"$nor": [{"a": 1}, {"b": 2}]}`,
			predicate: "NOT (record.a = $p0 OR record.b = $p1)",
			params:    map[string]any{"p0": int64(1), "p1": int64(2)},
		},
		{
			name:      "xor",
			doc:       `{"$xor": [{"a": 1}, {"b": 2}]}`,
			predicate: "(record.a = $p0 XOR record.b = $p1)",
			params:    map[string]any{"p0": int64(1), "p1": int64(2)},
		},
		{
			name:      "connective on a field",
			doc:       `{"age": {"$or": [{"$lt": 18}, {"$gt": 65}]}}`,
			predicate: "(record.age < $p0 OR record.age > $p1)",
			params:    map[string]any{"p0": int64(18), "p1": int64(65)},
		},
		{
			name:      "single child passes through",
			doc:       `{"$or": [{"a": 1}]}`,
			predicate: "record.a = $p0",
			params:    map[string]any{"p0": int64(1)},
		},
		{
			name:      "empty operand of or matches everything",
			doc:       `{"$or": [{}, {"a": 1}]}`,
			predicate: "(true OR record.a = $p0)",
			params:    map[string]any{"p0": int64(1)},
		},
		{
			name:      "or of a single empty operand",
			doc:       `{"$or": [{}]}`,
			predicate: "true",
			params:    map[string]any{},
		},
		{
			name:      "not of empty object matches nothing",
			doc:       `{"$not": {}}`,
			predicate: "NOT (true)",
			params:    map[string]any{},
		},
		{
			name:      "empty operand of and is dropped",
			doc:       `{"$and": [{}, {"a": 1}]}`,
			predicate: "record.a = $p0",
			params:    map[string]any{"p0": int64(1)},
		},
		{
			name:      "field names are sanitized",
			doc:       "{\"first name; DROP\": \"x\"}",
			predicate: "record.first_name_DROP = $p0",
			params:    map[string]any{"p0": "x"},
		},
		{
			name:      "field names are quoted when needed",
			doc:       `{"first-name": "x"}`,
			predicate: "record.`first-name` = $p0",
			params:    map[string]any{"p0": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, params := compileJSON(t, compilectx.Default(), nil, tt.doc)
			assert.Equal(t, []string{"(record:__RECORD__)"}, res.Patterns)
			assert.Equal(t, tt.predicate, res.Predicate)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestMatchesAll(t *testing.T) {
	parse := func(doc string) Node {
		node, err := Parse([]byte(doc))
		require.NoError(t, err)
		return node
	}

	assert.True(t, MatchesAll(nil))
	assert.True(t, MatchesAll(parse(`{}`)))
	assert.True(t, MatchesAll(parse(`{"$or": [{}]}`)))
	assert.True(t, MatchesAll(parse(`{"$or": [{}, {"a": 1}]}`)))
	assert.True(t, MatchesAll(parse(`{"$and": [{}, {"$or": [{}]}]}`)))

	assert.False(t, MatchesAll(parse(`{"a": 1}`)))
	assert.False(t, MatchesAll(parse(`{"$not": {}}`)))
	assert.False(t, MatchesAll(parse(`{"$and": [{}, {"a": 1}]}`)))
	assert.False(t, MatchesAll(parse(`{"POST": {}}`)))
}

func TestCompile_ImplicitAndMatchesExplicitAnd(t *testing.T) {
	implicit, implicitParams := compileJSON(t, compilectx.Default(), nil, `{"a": 1, "b": 2}`)
	explicit, explicitParams := compileJSON(t, compilectx.Default(), nil, `{"$and": [{"a": 1}, {"b": 2}]}`)

	assert.Equal(t, "record.a = $p0 AND record.b = $p1", implicit.Predicate)
	assert.Equal(t, implicit.Predicate, explicit.Predicate)
	assert.Equal(t, implicit.Patterns, explicit.Patterns)
	assert.Equal(t, implicitParams, explicitParams)
}

func TestCompile_Deterministic(t *testing.T) {
	doc := `{"name": {"$contains": "a"}, "POST": {"$alias": "$post", "rating": {"$gte": 4}}, "$or": [{"age": 1}, {"COMMENT": {"text": "x"}}]}`

	first, firstParams := compileJSON(t, compilectx.Default(), []string{"Person"}, doc)
	for i := 0; i < 10; i++ {
		again, params := compileJSON(t, compilectx.Default(), []string{"Person"}, doc)
		require.Equal(t, first.Patterns, again.Patterns)
		require.Equal(t, first.Predicate, again.Predicate)
		require.Equal(t, firstParams, params)
	}
}

func TestCompile_FromMapSortsKeys(t *testing.T) {
	node, err := FromMap(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)

	params := compilectx.Default().Params()
	res, err := Compile(compilectx.Default(), node, nil, params)
	require.NoError(t, err)

	assert.Equal(t, "record.a = $p0 AND record.b = $p1", res.Predicate)
	assert.Equal(t, map[string]any{"p0": "x", "p1": int64(2)}, params.Values())
}

func TestCompile_Relations(t *testing.T) {
	doc := `{
		"name": "Ada",
		"POST": {
			"$alias": "$post",
			"$relation": {"type": "AUTHORED", "direction": "out"},
			"title": {"$contains": "graph"},
			"COMMENT": {"$relation": "ON", "text": "hi"}
		}
	}`

	res, params := compileJSON(t, compilectx.Default(), []string{"Person"}, doc)

	assert.Equal(t, []string{
		"(record:__RECORD__:Person)",
		"(record)-[:AUTHORED]->(record1:__RECORD__:POST)",
		"(record1)-[:ON]-(record2:__RECORD__:COMMENT)",
	}, res.Patterns)
	assert.Equal(t,
		"record.name = $p0 AND toLower(toString(record1.title)) CONTAINS toLower($p1) AND record2.text = $p2",
		res.Predicate)
	assert.Equal(t, map[string]any{"p0": "Ada", "p1": "graph", "p2": "hi"}, params)
	assert.Equal(t, map[string]string{"$record": "record", "$post": "record1"}, res.Aliases())

	assert.Equal(t, []string{
		"MATCH (record:__RECORD__:Person)",
		"MATCH (record)-[:AUTHORED]->(record1:__RECORD__:POST)",
		"MATCH (record1)-[:ON]-(record2:__RECORD__:COMMENT)",
		"WHERE record.name = $p0 AND toLower(toString(record1.title)) CONTAINS toLower($p1) AND record2.text = $p2",
	}, res.Clauses())
}

func TestCompile_InboundAndEmptyRelation(t *testing.T) {
	res, _ := compileJSON(t, compilectx.Default(), nil, `{"COMPANY": {"$relation": {"direction": "in"}}}`)

	assert.Equal(t, []string{
		"(record:__RECORD__)",
		"(record)<--(record1:__RECORD__:COMPANY)",
	}, res.Patterns)
	assert.Empty(t, res.Predicate)
}

func TestCompile_RelationUnderOrBecomesExists(t *testing.T) {
	res, params := compileJSON(t, compilectx.Default(), nil, `{"$or": [{"age": {"$lt": 18}}, {"POST": {"title": "x"}}]}`)

	assert.Equal(t, []string{"(record:__RECORD__)"}, res.Patterns)
	assert.Equal(t,
		"(record.age < $p0 OR EXISTS { MATCH (record)--(record1:__RECORD__:POST) WHERE record1.title = $p1 })",
		res.Predicate)
	assert.Equal(t, map[string]any{"p0": int64(18), "p1": "x"}, params)
}

func TestCompile_Scope(t *testing.T) {
	ctx := compilectx.Default().WithScope(map[string]any{"tenant": "t1"})
	res, params := compileJSON(t, ctx, []string{"Person"}, `{"POST": {"title": "x"}}`)

	assert.Equal(t, []string{
		"(record:__RECORD__:Person {tenant: $scope0})",
		"(record)--(record1:__RECORD__:POST {tenant: $scope0})",
	}, res.Patterns)
	assert.Equal(t, map[string]any{"scope0": "t1", "p0": "x"}, params)
}

func TestCompile_MultipleLabels(t *testing.T) {
	res, _ := compileJSON(t, compilectx.Default(), []string{"Person", "Company"}, `{}`)

	assert.Equal(t, []string{"(record:__RECORD__)"}, res.Patterns)
	assert.Equal(t, "(record:Person OR record:Company)", res.Predicate)
}

func TestCompile_EmptyFilter(t *testing.T) {
	for _, doc := range []string{"", "null", "{}", `{"$and": []}`} {
		res, params := compileJSON(t, compilectx.Default(), []string{"Person"}, doc)
		assert.Equal(t, []string{"(record:__RECORD__:Person)"}, res.Patterns, doc)
		assert.Empty(t, res.Predicate, doc)
		assert.Empty(t, params, doc)
	}
}

func TestCompile_Datetime(t *testing.T) {
	res, params := compileJSON(t, compilectx.Default(), nil, `{"created": {"$year": 2024, "$month": 3}}`)
	assert.Equal(t,
		"(datetime(record.created).year = $p0 AND datetime(record.created).month = $p1)",
		res.Predicate)
	assert.Equal(t, map[string]any{"p0": int64(2024), "p1": int64(3)}, params)

	res, params = compileJSON(t, compilectx.Default(), nil, `{"created": {"$gt": {"$year": 2024, "$month": 1}}}`)
	assert.Equal(t, "datetime(record.created) > datetime($p0)", res.Predicate)
	assert.Equal(t, map[string]any{"p0": map[string]any{"year": int64(2024), "month": int64(1)}}, params)

	res, _ = compileJSON(t, compilectx.Default(), nil, `{"created": {"$ne": {"$day": 1}}}`)
	assert.Equal(t, "NOT (datetime(record.created).day = $p0)", res.Predicate)
}

func TestCompile_Vector(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		predicate string
	}{
		{
			name:      "similarity defaults to gte",
			doc:       `{"embedding": {"$vector": {"fn": "cosine", "query": [0.1, 0.2], "threshold": 0.8}}}`,
			predicate: "gds.similarity.cosine(record.embedding, $p0) >= $p1",
		},
		{
			name:      "distance defaults to lte",
			doc:       `{"embedding": {"$vector": {"fn": "euclideanDistance", "query": [0.1, 0.2], "threshold": 1.5}}}`,
			predicate: "gds.similarity.euclideanDistance(record.embedding, $p0) <= $p1",
		},
		{
			name:      "explicit comparator",
			doc:       `{"embedding": {"$vector": {"fn": "vector.similarity.cosine", "query": [0.1, 0.2], "threshold": {"$gt": 0.5}}}}`,
			predicate: "vector.similarity.cosine(record.embedding, $p0) > $p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, params := compileJSON(t, compilectx.Default(), nil, tt.doc)
			assert.Equal(t, tt.predicate, res.Predicate)
			assert.Equal(t, []float64{0.1, 0.2}, params["p0"])
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		sentinel error
	}{
		{"unknown operator", `{"age": {"$foo": 1}}`, errs.ErrUnknownOperator},
		{"unknown top-level operator", `{"$where": "1=1"}`, errs.ErrUnknownOperator},
		{"vector without threshold", `{"v": {"$vector": {"fn": "cosine", "query": [0.1]}}}`, errs.ErrMalformedVector},
		{"vector with unknown fn", `{"v": {"$vector": {"fn": "dot", "query": [0.1], "threshold": 1}}}`, errs.ErrMalformedVector},
		{"vector with empty query", `{"v": {"$vector": {"fn": "cosine", "query": [], "threshold": 1}}}`, errs.ErrMalformedVector},
		{"vector with text query", `{"v": {"$vector": {"fn": "cosine", "query": ["a"], "threshold": 1}}}`, errs.ErrMalformedVector},
		{"unknown type tag", `{"v": {"$type": "blob"}}`, errs.ErrInvalidValue},
		{"in without array", `{"v": {"$in": "a"}}`, errs.ErrInvalidValue},
		{"exists without boolean", `{"v": {"$exists": 1}}`, errs.ErrInvalidValue},
		{"bad direction", `{"POST": {"$relation": {"direction": "up"}}}`, errs.ErrMalformedRelation},
		{"alias at root", `{"$alias": "$x"}`, errs.ErrMalformedRelation},
		{"alias under or", `{"$or": [{"POST": {"$alias": "$post"}}]}`, errs.ErrMalformedRelation},
		{"duplicate alias", `{"A": {"$alias": "$x"}, "B": {"$alias": "x"}}`, errs.ErrDuplicateAlias},
		{"root alias redeclared", `{"A": {"$alias": "$record"}}`, errs.ErrDuplicateAlias},
		{"empty label", "{\"`\": {\"x\": 1}}", errs.ErrInvalidIdentifier},
		{"empty field", `{";;": 1}`, errs.ErrInvalidIdentifier},
		{"datetime comparison without year", `{"d": {"$gt": {"$month": 1}}}`, errs.ErrInvalidValue},
		{"not an object", `[1, 2]`, errs.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileJSONErr(t, tt.doc)
			require.Error(t, err)
			assert.True(t, errs.IsCompile(err), "expected a compile error, got %v", err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestCompile_MalformedJSON(t *testing.T) {
	err := compileJSONErr(t, `{"a": `)
	require.Error(t, err)
	assert.True(t, errs.IsCompile(err))
}

func TestCompile_TypedTree(t *testing.T) {
	node := And(
		Eq("name", "Ada"),
		Or(Cmp("age", OpLt, 18), Cmp("age", OpGt, 65)),
		Relation{Label: "POST", Alias: "post", Where: Property{Field: "tags", Cond: Exists{Present: true}}},
	)

	params := compilectx.Default().Params()
	res, err := Compile(compilectx.Default(), node, []string{"Person"}, params)
	require.NoError(t, err)

	assert.Equal(t, "record.name = $p0 AND (record.age < $p1 OR record.age > $p2) AND record1.tags IS NOT NULL", res.Predicate)
	assert.Equal(t, map[string]string{"$record": "record", "$post": "record1"}, res.Aliases())
}

func TestLookupVectorFunction(t *testing.T) {
	fn, ok := LookupVectorFunction("pearson")
	require.True(t, ok)
	assert.Equal(t, "gds.similarity.pearson", fn.Name)
	assert.Equal(t, OpGte, fn.DefaultOperator())

	fn, ok = LookupVectorFunction("gds.similarity.euclideanDistance")
	require.True(t, ok)
	assert.Equal(t, OpLte, fn.DefaultOperator())

	_, ok = LookupVectorFunction("apoc.do.it")
	assert.False(t, ok)
}
