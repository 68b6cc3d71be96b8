package where

import (
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/alias"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
)

// Result is a compiled filter.
type Result struct {
	// Patterns holds the root node pattern followed by one hop pattern per
	// traversed relation, in discovery order.
	Patterns []string
	// Predicate is the single boolean expression of the filter; empty when
	// the filter matches everything.
	Predicate string
	// Registry maps declared aliases to the variables bound by Patterns.
	Registry *alias.Registry
}

// Clauses returns one MATCH clause per pattern followed by the WHERE clause.
func (r *Result) Clauses() []string {
	b := qb.NewClauseBuilder()
	for _, p := range r.Patterns {
		b.AddMatch(p)
	}
	b.AddWhere(r.Predicate)
	return b.Clauses()
}

// Aliases returns the addressable alias → variable map.
func (r *Result) Aliases() map[string]string {
	return r.Registry.Aliases()
}

// scope collects the output of one conjunctive context: the top level, or
// the body of an EXISTS subquery.
type scope struct {
	patterns []string
	conds    []string
	inExists bool
}

type compiler struct {
	ctx    compilectx.Context
	params *compilectx.Params
	reg    *alias.Registry
}

// Compile compiles node against the root record. labels restricts the root
// to any of the given labels. Values are bound into params.
//
// Example:
//
//	{"name": "Ada", "POST": {"$alias": "$post", "title": {"$contains": "graph"}}}
//
// compiles to the patterns
//
//	(record:__RECORD__)
//	(record)--(record1:__RECORD__:POST)
//
// and the predicate
//
//	record.name = $p0 AND toLower(toString(record1.title)) CONTAINS toLower($p1)
func Compile(ctx compilectx.Context, node Node, labels []string, params *compilectx.Params) (*Result, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}

	sanitized := make([]string, 0, len(labels))
	for _, l := range labels {
		s := qb.SanitizeIdentifier(l)
		if s == "" {
			return nil, errs.Compilef("where", "labels", errs.ErrInvalidIdentifier, "%q", l)
		}
		sanitized = append(sanitized, s)
	}

	c := &compiler{
		ctx:    ctx,
		params: params,
		reg:    alias.NewRegistry(ctx),
	}
	s := &scope{}

	rootVar := ctx.RootVar
	if len(sanitized) == 1 {
		s.patterns = append(s.patterns, ctx.NodePattern(rootVar, sanitized, params).String())
	} else {
		s.patterns = append(s.patterns, ctx.NodePattern(rootVar, nil, params).String())
		if len(sanitized) > 1 {
			alternatives := make([]string, 0, len(sanitized))
			for _, l := range sanitized {
				alternatives = append(alternatives, rootVar+qb.Labels(l))
			}
			s.conds = append(s.conds, "("+strings.Join(alternatives, " OR ")+")")
		}
	}

	if err := c.conj(node, rootVar, s, "where"); err != nil {
		return nil, err
	}

	return &Result{
		Patterns:  s.patterns,
		Predicate: strings.Join(s.conds, " AND "),
		Registry:  c.reg,
	}, nil
}

// conj compiles node in a conjunctive context: relations become hops and
// their predicates are flattened into s.
func (c *compiler) conj(node Node, cur string, s *scope, path string) error {
	switch n := node.(type) {
	case nil:
		return nil
	case Logical:
		if n.Op != OpAnd {
			break
		}
		for _, child := range n.Children {
			if err := c.conj(child, cur, s, path); err != nil {
				return err
			}
		}
		return nil
	case Relation:
		return c.hop(n, cur, s, joinPath(path, n.Label))
	}

	expr, err := c.expr(node, cur, path)
	if err != nil {
		return err
	}
	if expr != "" {
		s.conds = append(s.conds, expr)
	}
	return nil
}

func (c *compiler) hop(rel Relation, cur string, s *scope, path string) error {
	label := qb.SanitizeIdentifier(rel.Label)
	if label == "" {
		return errs.Compilef("where", path, errs.ErrInvalidIdentifier, "label %q", rel.Label)
	}
	if s.inExists && rel.Alias != "" {
		return errs.Compilef("where", path, errs.ErrMalformedRelation,
			"alias %s cannot be declared under $or, $xor, $not or $nor", rel.Alias)
	}

	var relType string
	if rel.Type != "" {
		relType = qb.SanitizeIdentifier(rel.Type)
		if relType == "" {
			return errs.Compilef("where", joinPath(path, keyRelation), errs.ErrInvalidIdentifier, "type %q", rel.Type)
		}
	}

	node, err := c.reg.Allocate(cur, label, rel.Alias)
	if err != nil {
		return err
	}

	pattern := qb.Hop(cur,
		qb.RelationPattern{Type: relType, Direction: rel.Direction},
		c.ctx.NodePattern(node.Var, []string{label}, c.params))
	s.patterns = append(s.patterns, pattern)

	return c.conj(rel.Where, node.Var, s, path)
}

// expr compiles node to a standalone boolean expression.
func (c *compiler) expr(node Node, cur string, path string) (string, error) {
	switch n := node.(type) {
	case nil:
		return "", nil
	case Property:
		field := qb.SanitizeIdentifier(n.Field)
		if field == "" {
			return "", errs.Compilef("where", path, errs.ErrInvalidIdentifier, "field %q", n.Field)
		}
		return c.condition(qb.Property(cur, field), n.Cond, joinPath(path, n.Field))
	case ID:
		return c.condition(c.ctx.IdentityProperty(cur), n.Cond, joinPath(path, keyID))
	case Relation:
		return c.exists(n, cur, joinPath(path, n.Label))
	case Logical:
		exprs := make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			e, err := c.expr(child, cur, joinPath(path, string(n.Op)))
			if err != nil {
				return "", err
			}
			exprs = append(exprs, e)
		}
		return combine(n.Op, exprs)
	default:
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "unsupported node %T", node)
	}
}

// exists renders a relation outside a conjunctive context as an existential
// subquery, so it never multiplies the outer rows.
func (c *compiler) exists(rel Relation, cur string, path string) (string, error) {
	sub := &scope{inExists: true}
	if err := c.hop(rel, cur, sub, path); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("EXISTS { MATCH ")
	sb.WriteString(strings.Join(sub.patterns, ", "))
	if len(sub.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(sub.conds, " AND "))
	}
	sb.WriteString(" }")
	return sb.String(), nil
}

// combine joins compiled children with a connective. An empty child matches
// everything and is rendered as true.
func combine(op LogicalOp, exprs []string) (string, error) {
	if op == OpAnd {
		var kept []string
		for _, e := range exprs {
			if e != "" {
				kept = append(kept, e)
			}
		}
		return group(kept, " AND "), nil
	}

	filled := make([]string, len(exprs))
	for i, e := range exprs {
		if e == "" {
			e = "true"
		}
		filled[i] = e
	}
	if len(filled) == 0 {
		return "", nil
	}

	switch op {
	case OpOr:
		return group(filled, " OR "), nil
	case OpXor:
		return group(filled, " XOR "), nil
	case OpNot:
		return "NOT (" + strings.Join(filled, " AND ") + ")", nil
	case OpNor:
		return "NOT (" + strings.Join(filled, " OR ") + ")", nil
	default:
		return "", errs.Compilef("where", "", errs.ErrUnknownOperator, "%s", op)
	}
}

func group(exprs []string, sep string) string {
	switch len(exprs) {
	case 0:
		return ""
	case 1:
		return exprs[0]
	default:
		return "(" + strings.Join(exprs, sep) + ")"
	}
}
