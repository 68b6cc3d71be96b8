// Package alias maps caller-declared aliases to the pattern variables the
// compiler allocates for traversed nodes.
package alias

import (
	"fmt"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
)

// Node is one allocated pattern variable.
type Node struct {
	// Var is the pattern variable, e.g. "record2".
	Var string
	// Alias is the caller alias ("$post"), empty for anonymous hops.
	Alias string
	// Parent is the variable the hop started from; empty for the root.
	Parent string
	// Label is the sanitized target label of the hop; empty for the root.
	Label string
}

// Registry allocates variables in discovery order. The root is always the
// first node. A Registry belongs to a single compile.
type Registry struct {
	rootVar string
	nodes   []Node
	byAlias map[string]int
	byVar   map[string]int
}

// NewRegistry creates a registry whose root node is bound to the context's
// root alias and variable.
func NewRegistry(ctx compilectx.Context) *Registry {
	r := &Registry{
		rootVar: ctx.RootVar,
		byAlias: make(map[string]int),
		byVar:   make(map[string]int),
	}
	r.nodes = append(r.nodes, Node{Var: ctx.RootVar, Alias: compilectx.NormalizeAlias(ctx.RootAlias)})
	r.byVar[ctx.RootVar] = 0
	if a := compilectx.NormalizeAlias(ctx.RootAlias); a != "" {
		r.byAlias[a] = 0
	}
	return r
}

// Root returns the root node.
func (r *Registry) Root() Node {
	return r.nodes[0]
}

// Allocate reserves the next hop variable below parent. When alias is not
// empty it becomes addressable; declaring the same alias twice fails.
func (r *Registry) Allocate(parent, label, alias string) (Node, error) {
	alias = compilectx.NormalizeAlias(alias)
	if alias != "" {
		if _, exists := r.byAlias[alias]; exists {
			return Node{}, errs.Compilef("alias", alias, errs.ErrDuplicateAlias, "%s", alias)
		}
	}

	node := Node{
		Var:    fmt.Sprintf("%s%d", r.rootVar, len(r.nodes)),
		Alias:  alias,
		Parent: parent,
		Label:  label,
	}
	r.nodes = append(r.nodes, node)
	r.byVar[node.Var] = len(r.nodes) - 1
	if alias != "" {
		r.byAlias[alias] = len(r.nodes) - 1
	}
	return node, nil
}

// Resolve returns the node registered for alias.
func (r *Registry) Resolve(alias string) (Node, bool) {
	i, ok := r.byAlias[compilectx.NormalizeAlias(alias)]
	if !ok {
		return Node{}, false
	}
	return r.nodes[i], true
}

// Lookup returns the node bound to a pattern variable.
func (r *Registry) Lookup(varName string) (Node, bool) {
	i, ok := r.byVar[varName]
	if !ok {
		return Node{}, false
	}
	return r.nodes[i], true
}

// Chain returns the variables from the root down to varName, inclusive.
// Unknown variables yield nil.
func (r *Registry) Chain(varName string) []string {
	var reversed []string
	for varName != "" {
		node, ok := r.Lookup(varName)
		if !ok {
			return nil
		}
		reversed = append(reversed, node.Var)
		varName = node.Parent
	}

	chain := make([]string, len(reversed))
	for i, v := range reversed {
		chain[len(reversed)-1-i] = v
	}
	return chain
}

// Below reports whether varName was reached through ancestor, excluding
// ancestor itself.
func (r *Registry) Below(varName, ancestor string) bool {
	if varName == ancestor {
		return false
	}
	for _, v := range r.Chain(varName) {
		if v == ancestor {
			return true
		}
	}
	return false
}

// IsVar reports whether name is an allocated pattern variable.
func (r *Registry) IsVar(name string) bool {
	_, ok := r.byVar[name]
	return ok
}

// Nodes returns every allocated node in discovery order.
func (r *Registry) Nodes() []Node {
	out := make([]Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Aliases returns the addressable alias → variable map.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.byAlias))
	for a, i := range r.byAlias {
		out[a] = r.nodes[i].Var
	}
	return out
}
