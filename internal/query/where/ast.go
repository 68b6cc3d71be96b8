// Package where compiles the structured filter language into MATCH patterns
// and a single boolean predicate.
//
// A filter is a tree of Nodes. Leaves test a property of the current node
// (Property), its identity (ID), or traverse to a related node (Relation);
// Logical nodes combine children. Property conditions are themselves a small
// tree of Conditions, so "age between 18 and 65" is one Property whose
// Condition is a CondGroup of two Compares.
package where

import qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"

// Node is a filter expression. The set of implementations is closed.
type Node interface {
	whereNode()
}

// Condition is the value side of a Property or ID test. The set of
// implementations is closed.
type Condition interface {
	condition()
}

// LogicalOp is a boolean connective.
type LogicalOp string

const (
	OpAnd LogicalOp = "$and"
	OpOr  LogicalOp = "$or"
	OpNot LogicalOp = "$not"
	OpXor LogicalOp = "$xor"
	OpNor LogicalOp = "$nor"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq         Operator = "$eq"
	OpNe         Operator = "$ne"
	OpGt         Operator = "$gt"
	OpGte        Operator = "$gte"
	OpLt         Operator = "$lt"
	OpLte        Operator = "$lte"
	OpIn         Operator = "$in"
	OpNin        Operator = "$nin"
	OpContains   Operator = "$contains"
	OpStartsWith Operator = "$startsWith"
	OpEndsWith   Operator = "$endsWith"
)

// Logical joins its children with Op.
type Logical struct {
	Op       LogicalOp
	Children []Node
}

// Property tests one property of the current node.
type Property struct {
	Field string
	Cond  Condition
}

// Relation traverses from the current node to a node labelled Label and
// applies Where to it.
type Relation struct {
	Label     string
	Type      string
	Direction qb.Direction
	Alias     string
	Where     Node
}

// ID tests the identity key of the current node.
type ID struct {
	Cond Condition
}

func (Logical) whereNode()  {}
func (Property) whereNode() {}
func (Relation) whereNode() {}
func (ID) whereNode()       {}

// Compare applies a comparison operator to a value.
type Compare struct {
	Op    Operator
	Value any
}

// Exists tests presence (true) or absence (false) of the property.
type Exists struct {
	Present bool
}

// TypeIs tests the stored value type: string, number, boolean, datetime,
// null or vector.
type TypeIs struct {
	Type string
}

// DatePart is one decomposed timestamp component, e.g. {Unit: "year", Value: 2024}.
type DatePart struct {
	Unit  string
	Value int64
}

// DateParts compares the property, read as a datetime, against components.
// With OpEq every given component must match; other operators compare
// against the datetime the components build.
type DateParts struct {
	Op    Operator
	Parts []DatePart
}

// Vector compares a similarity or distance score against Threshold. An empty
// Op selects the default comparator of the function.
type Vector struct {
	Fn        string
	Query     []float64
	Op        Operator
	Threshold float64
}

// CondGroup joins several conditions on the same property.
type CondGroup struct {
	Op    LogicalOp
	Conds []Condition
}

func (Compare) condition()   {}
func (Exists) condition()    {}
func (TypeIs) condition()    {}
func (DateParts) condition() {}
func (Vector) condition()    {}
func (CondGroup) condition() {}

// And is shorthand for Logical{Op: OpAnd}.
func And(children ...Node) Logical {
	return Logical{Op: OpAnd, Children: children}
}

// Or is shorthand for Logical{Op: OpOr}.
func Or(children ...Node) Logical {
	return Logical{Op: OpOr, Children: children}
}

// Not is shorthand for Logical{Op: OpNot}.
func Not(children ...Node) Logical {
	return Logical{Op: OpNot, Children: children}
}

// MatchesAll reports whether node is trivially true: nil, a conjunction of
// trivially true nodes, or a disjunction with a trivially true operand.
func MatchesAll(node Node) bool {
	if node == nil {
		return true
	}
	n, ok := node.(Logical)
	if !ok {
		return false
	}
	switch n.Op {
	case OpAnd:
		for _, child := range n.Children {
			if !MatchesAll(child) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range n.Children {
			if MatchesAll(child) {
				return true
			}
		}
	}
	return false
}

// Eq is shorthand for an equality Property.
func Eq(field string, value any) Property {
	return Property{Field: field, Cond: Compare{Op: OpEq, Value: value}}
}

// Cmp is shorthand for a comparison Property.
func Cmp(field string, op Operator, value any) Property {
	return Property{Field: field, Cond: Compare{Op: op, Value: value}}
}
