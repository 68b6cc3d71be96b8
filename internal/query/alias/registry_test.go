package alias

import (
	"testing"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RootIsReserved(t *testing.T) {
	r := NewRegistry(compilectx.Default())

	root := r.Root()
	assert.Equal(t, "record", root.Var)
	assert.Equal(t, "$record", root.Alias)

	resolved, ok := r.Resolve("record")
	require.True(t, ok)
	assert.Equal(t, "record", resolved.Var)
}

func TestRegistry_AllocateInDiscoveryOrder(t *testing.T) {
	r := NewRegistry(compilectx.Default())

	post, err := r.Allocate("record", "Post", "$post")
	require.NoError(t, err)
	anon, err := r.Allocate("record", "Tag", "")
	require.NoError(t, err)
	comment, err := r.Allocate(post.Var, "Comment", "comment")
	require.NoError(t, err)

	assert.Equal(t, "record1", post.Var)
	assert.Equal(t, "record2", anon.Var)
	assert.Equal(t, "record3", comment.Var)
	assert.Equal(t, "$comment", comment.Alias)

	assert.Equal(t, map[string]string{
		"$record":  "record",
		"$post":    "record1",
		"$comment": "record3",
	}, r.Aliases())

	_, ok := r.Resolve("$tag")
	assert.False(t, ok, "anonymous hops are not addressable")
	assert.True(t, r.IsVar("record2"))
}

func TestRegistry_DuplicateAlias(t *testing.T) {
	r := NewRegistry(compilectx.Default())

	_, err := r.Allocate("record", "Post", "$post")
	require.NoError(t, err)
	_, err = r.Allocate("record", "Post", "post")

	assert.True(t, errs.IsCompile(err))
	assert.ErrorIs(t, err, errs.ErrDuplicateAlias)

	_, err = r.Allocate("record", "Person", "$record")
	assert.ErrorIs(t, err, errs.ErrDuplicateAlias, "root alias is reserved")
}

func TestRegistry_Chain(t *testing.T) {
	r := NewRegistry(compilectx.Default())
	a, _ := r.Allocate("record", "A", "$a")
	b, _ := r.Allocate(a.Var, "B", "$b")

	assert.Equal(t, []string{"record", "record1", "record2"}, r.Chain(b.Var))
	assert.Equal(t, []string{"record"}, r.Chain("record"))
	assert.Nil(t, r.Chain("nope"))
}

func TestRegistry_Below(t *testing.T) {
	r := NewRegistry(compilectx.Default())
	a, _ := r.Allocate("record", "A", "$a")
	b, _ := r.Allocate(a.Var, "B", "$b")
	c, _ := r.Allocate("record", "C", "$c")

	assert.True(t, r.Below(b.Var, a.Var))
	assert.True(t, r.Below(b.Var, "record"))
	assert.False(t, r.Below(a.Var, a.Var))
	assert.False(t, r.Below(a.Var, b.Var))
	assert.False(t, r.Below(c.Var, a.Var))
}

func TestRegistry_Deterministic(t *testing.T) {
	build := func() map[string]string {
		r := NewRegistry(compilectx.Default())
		p, _ := r.Allocate("record", "Post", "$post")
		_, _ = r.Allocate(p.Var, "Comment", "$comment")
		return r.Aliases()
	}
	assert.Equal(t, build(), build())
}
