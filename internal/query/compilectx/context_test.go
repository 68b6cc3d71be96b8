package compilectx

import (
	"testing"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsUnsafeIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Context)
	}{
		{"root var", func(c *Context) { c.RootVar = "rec ord" }},
		{"param prefix", func(c *Context) { c.ParamPrefix = "1p" }},
		{"identity key", func(c *Context) { c.IdentityKey = "id`" }},
		{"empty label key", func(c *Context) { c.LabelKey = "" }},
		{"relation type", func(c *Context) { c.DefaultRelationType = "REL;" }},
		{"scope key", func(c *Context) { c.Scope = []ScopeEntry{{Key: "tenant id", Value: 1}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			assert.True(t, errs.IsCompile(err))
			assert.ErrorIs(t, err, errs.ErrInvalidIdentifier)
		})
	}
}

func TestValidate_EmptyBaseLabelAllowed(t *testing.T) {
	c := Default()
	c.BaseLabel = ""
	assert.NoError(t, c.Validate())
	assert.Equal(t, "labels(record)[0]", c.LabelExpr("record"))
}

func TestNormalizeAlias(t *testing.T) {
	assert.Equal(t, "$post", NormalizeAlias("post"))
	assert.Equal(t, "$post", NormalizeAlias("$post"))
	assert.Equal(t, "$post", NormalizeAlias("$$post"))
	assert.Equal(t, "", NormalizeAlias("  "))
	assert.True(t, Default().IsRootAlias("record"))
	assert.False(t, Default().IsRootAlias("$post"))
}

func TestNodePattern_WithScope(t *testing.T) {
	c := Default().WithScope(map[string]any{"tenant": "t1", "project": "p9"})
	params := c.Params()

	root := c.NodePattern("record", []string{"Person"}, params)
	hop := c.NodePattern("record1", []string{"Post"}, params)

	assert.Equal(t, "(record:__RECORD__:Person {project: $scope0, tenant: $scope1})", root.String())
	assert.Equal(t, "(record1:__RECORD__:Post {project: $scope0, tenant: $scope1})", hop.String())
	assert.Equal(t, map[string]any{"scope0": "p9", "scope1": "t1"}, params.Values())
}

func TestRecordProjection(t *testing.T) {
	c := Default()
	assert.Equal(t,
		"record {.*, __label: [l IN labels(record) WHERE l <> '__RECORD__'][0]}",
		c.RecordProjection("record").Build())
	assert.Equal(t, "record.__id", c.IdentityProperty("record"))
}

func TestParams_Deterministic(t *testing.T) {
	p := NewParams("s")
	assert.Equal(t, "$s0", p.Bind(1))
	assert.Equal(t, "$s1", p.Bind("x"))
	assert.Equal(t, "$limit", p.Set("limit", 10))
	assert.Equal(t, 3, p.Len())

	values := p.Values()
	values["s0"] = 99
	assert.Equal(t, 1, p.Values()["s0"], "Values must return a copy")

	p.Merge(map[string]any{"t0": true})
	assert.Equal(t, true, p.Values()["t0"])
}

func TestWithRoot(t *testing.T) {
	c := Default().WithRoot("source", "source").WithParamPrefix("s")
	assert.Equal(t, "$source", c.RootAlias)
	assert.Equal(t, "source", c.RootVar)
	assert.Equal(t, "$s0", c.Params().Bind(1))
}
