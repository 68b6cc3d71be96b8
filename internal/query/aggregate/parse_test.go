package aggregate

import (
	"testing"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_KeepsDocumentOrder(t *testing.T) {
	m, err := Parse([]byte(`{
		"zeta": "$post.title",
		"alpha": {"fn": "count", "alias": "$post"},
		"mid": {"fn": "avg", "field": "rating", "precision": 1}
	}`))
	require.NoError(t, err)

	require.Len(t, m, 3)
	assert.Equal(t, "zeta", m[0].Key)
	assert.Equal(t, Field{Ref: Ref{Alias: "$post", Field: "title"}}, m[0].Instr)
	assert.Equal(t, "alpha", m[1].Key)
	assert.Equal(t, Count{Ref: Ref{Alias: "$post"}, Unique: true}, m[1].Instr, "count is unique unless disabled")
	assert.Equal(t, Avg{Ref: Ref{Field: "rating"}, Precision: intPtr(1)}, m[2].Instr)
}

func TestParse_Instructions(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Instruction
	}{
		{"count not unique", `{"fn": "count", "unique": false}`, Count{}},
		{"count field tallies values", `{"fn": "count", "field": "city"}`, Count{Ref: Ref{Field: "city"}}},
		{"count field distinct", `{"fn": "count", "field": "city", "unique": true}`, Count{Ref: Ref{Field: "city"}, Unique: true}},
		{"sum", `{"fn": "sum", "field": "amount"}`, Reduce{Ref: Ref{Field: "amount"}, Fn: FnSum}},
		{"avg null precision", `{"fn": "avg", "field": "x", "precision": null}`, Avg{Ref: Ref{Field: "x"}}},
		{
			"collect",
			`{"fn": "collect", "alias": "$post", "orderBy": {"title": "asc"}, "skip": 2, "limit": 5}`,
			Collect{Ref: Ref{Alias: "$post"}, Unique: true, Skip: 2, Limit: 5, OrderBy: &SortKey{Field: "title", Ascending: true}},
		},
		{
			"collect ordered by identity",
			`{"fn": "collect", "alias": "$post", "orderBy": "asc"}`,
			Collect{Ref: Ref{Alias: "$post"}, Unique: true, OrderBy: &SortKey{Ascending: true}},
		},
		{
			"time bucket",
			`{"fn": "timeBucket", "field": "createdAt", "granularity": "months", "size": 3}`,
			TimeBucket{Ref: Ref{Field: "createdAt"}, Granularity: "months", Size: 3},
		},
		{
			"similarity with metric",
			`{"fn": "similarity", "metric": "jaccard", "field": "tags", "query": [1, 0]}`,
			VectorScore{Ref: Ref{Field: "tags"}, Fn: "jaccard", Query: []float64{1, 0}},
		},
		{
			"vector function as fn",
			`{"fn": "vector.similarity.cosine", "field": "embedding", "query": [0.5]}`,
			VectorScore{Ref: Ref{Field: "embedding"}, Fn: "vector.similarity.cosine", Query: []float64{0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(`{"out": ` + tt.doc + `}`))
			require.NoError(t, err)
			require.Len(t, m, 1)
			assert.Equal(t, tt.want, m[0].Instr)
		})
	}
}

func TestParse_Nested(t *testing.T) {
	m, err := Parse([]byte(`{"posts": {"fn": "collect", "alias": "$post", "aggregate": {"n": {"fn": "count", "alias": "$comment"}}}}`))
	require.NoError(t, err)

	c, ok := m[0].Instr.(Collect)
	require.True(t, ok)
	assert.Equal(t, Map{{Key: "n", Instr: Count{Ref: Ref{Alias: "$comment"}, Unique: true}}}, c.Nested)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		sentinel error
	}{
		{"unknown fn", `{"x": {"fn": "median", "field": "a"}}`, errs.ErrUnknownFunction},
		{"missing fn", `{"x": {"field": "a"}}`, errs.ErrUnknownFunction},
		{"nested outside collect", `{"x": {"fn": "count", "aggregate": {"n": {"fn": "count"}}}}`, errs.ErrInvalidValue},
		{"unknown key", `{"x": {"fn": "count", "distinct": true}}`, errs.ErrInvalidValue},
		{"bad precision", `{"x": {"fn": "avg", "field": "a", "precision": -1}}`, errs.ErrInvalidValue},
		{"bad collect direction", `{"x": {"fn": "collect", "orderBy": {"a": "up"}}}`, errs.ErrInvalidDirection},
		{"two collect sort keys", `{"x": {"fn": "collect", "orderBy": {"a": "asc", "b": "desc"}}}`, errs.ErrInvalidValue},
		{"text query", `{"x": {"fn": "similarity", "field": "v", "query": ["a"]}}`, errs.ErrMalformedVector},
		{"number entry", `{"x": 1}`, errs.ErrInvalidValue},
		{"not an object", `[]`, errs.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errs.IsCompile(err))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseRef(t *testing.T) {
	assert.Equal(t, Ref{Alias: "$post", Field: "title"}, ParseRef("$post.title"))
	assert.Equal(t, Ref{Alias: "$post"}, ParseRef("$post"))
	assert.Equal(t, Ref{Field: "name"}, ParseRef(" name "))
}
