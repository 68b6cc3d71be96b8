package query_builder

import (
	"fmt"
	"strings"
)

// String renders the node pattern.
//
// Example:
//
//	NodePattern{Var: "record", Labels: []string{"__RECORD__", "Person"},
//	    Props: []PropertyBinding{{Key: "tenant", Param: "scope_tenant"}}}.String()
//	// (record:__RECORD__:Person {tenant: $scope_tenant})
func (n NodePattern) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(n.Var)
	sb.WriteString(Labels(n.Labels...))
	if len(n.Props) > 0 {
		props := make([]string, 0, len(n.Props))
		for _, p := range n.Props {
			props = append(props, fmt.Sprintf("%s: $%s", QuoteIdentifier(p.Key), p.Param))
		}
		sb.WriteString(" {")
		sb.WriteString(strings.Join(props, ", "))
		sb.WriteString("}")
	}
	sb.WriteString(")")
	return sb.String()
}

// Hop renders a single relationship traversal from an already bound variable
// to a new node pattern.
//
// Example:
//
//	Hop("record", RelationPattern{Type: "AUTHORED", Direction: DirectionOut},
//	    NodePattern{Var: "record1", Labels: []string{"Post"}})
//	// (record)-[:AUTHORED]->(record1:Post)
func Hop(fromVar string, rel RelationPattern, to NodePattern) string {
	relSpec := rel.Var
	if rel.Type != "" {
		relSpec += ":" + QuoteIdentifier(rel.Type)
	}

	var arrow string
	switch rel.Direction {
	case DirectionOut:
		arrow = fmt.Sprintf("-[%s]->", relSpec)
	case DirectionIn:
		arrow = fmt.Sprintf("<-[%s]-", relSpec)
	default:
		arrow = fmt.Sprintf("-[%s]-", relSpec)
	}
	if relSpec == "" {
		arrow = strings.Replace(arrow, "[]", "", 1)
	}

	return fmt.Sprintf("(%s)%s%s", fromVar, arrow, to.String())
}

// ClauseBuilder accumulates MATCH / OPTIONAL MATCH / raw clauses in order.
type ClauseBuilder struct {
	clauses []string
}

// NewClauseBuilder creates a new builder instance.
func NewClauseBuilder() *ClauseBuilder {
	return &ClauseBuilder{
		clauses: make([]string, 0),
	}
}

// AddMatch adds a MATCH clause for the given pattern.
func (b *ClauseBuilder) AddMatch(pattern string) {
	b.clauses = append(b.clauses, "MATCH "+pattern)
}

// AddOptionalMatch adds an OPTIONAL MATCH clause for the given pattern.
func (b *ClauseBuilder) AddOptionalMatch(pattern string) {
	b.clauses = append(b.clauses, "OPTIONAL MATCH "+pattern)
}

// AddClause adds a raw clause. Empty clauses are ignored.
func (b *ClauseBuilder) AddClause(clause string) {
	if clause == "" {
		return
	}
	b.clauses = append(b.clauses, clause)
}

// AddClauses adds several raw clauses in order.
func (b *ClauseBuilder) AddClauses(clauses ...string) {
	for _, c := range clauses {
		b.AddClause(c)
	}
}

// AddWhere adds a WHERE clause when predicate is not empty.
func (b *ClauseBuilder) AddWhere(predicate string) {
	if predicate == "" {
		return
	}
	b.clauses = append(b.clauses, "WHERE "+predicate)
}

// Clauses returns a copy of the accumulated clauses.
func (b *ClauseBuilder) Clauses() []string {
	out := make([]string, len(b.clauses))
	copy(out, b.clauses)
	return out
}

// Build returns all clauses joined by newlines.
func (b *ClauseBuilder) Build() string {
	return strings.Join(b.clauses, "\n")
}

// MapProjection builds a Cypher map projection over a node variable.
type MapProjection struct {
	varName string
	all     bool
	items   []string
}

// NewMapProjection creates a projection over varName.
func NewMapProjection(varName string) *MapProjection {
	return &MapProjection{
		varName: varName,
		items:   make([]string, 0),
	}
}

// AllProperties includes every stored property (.*).
func (m *MapProjection) AllProperties() *MapProjection {
	m.all = true
	return m
}

// AddExpression adds a computed entry (key: expression).
//
// Example:
//
//	NewMapProjection("record").AllProperties().AddExpression("total", "total").Build()
//	// record {.*, total: total}
func (m *MapProjection) AddExpression(key, expression string) *MapProjection {
	m.items = append(m.items, fmt.Sprintf("%s: %s", QuoteIdentifier(key), expression))
	return m
}

// Build returns the projection expression.
func (m *MapProjection) Build() string {
	entries := make([]string, 0, len(m.items)+1)
	if m.all {
		entries = append(entries, ".*")
	}
	entries = append(entries, m.items...)
	return fmt.Sprintf("%s {%s}", m.varName, strings.Join(entries, ", "))
}

// BuildCollect wraps the projection in collect(...), with DISTINCT when
// distinct is set.
func (m *MapProjection) BuildCollect(distinct bool) string {
	if distinct {
		return "collect(DISTINCT " + m.Build() + ")"
	}
	return "collect(" + m.Build() + ")"
}

// MapLiteral builds a literal map expression from ordered key/expression pairs.
type MapLiteral struct {
	items []string
}

// NewMapLiteral creates an empty map literal.
func NewMapLiteral() *MapLiteral {
	return &MapLiteral{items: make([]string, 0)}
}

// Add adds a key: expression entry.
func (c *MapLiteral) Add(key, expression string) *MapLiteral {
	c.items = append(c.items, fmt.Sprintf("%s: %s", QuoteIdentifier(key), expression))
	return c
}

// Build returns the map, e.g. {category: category, total: total}.
func (c *MapLiteral) Build() string {
	return "{" + strings.Join(c.items, ", ") + "}"
}
