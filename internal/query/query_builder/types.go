package query_builder

import "strings"

// Direction is the orientation of a relationship hop relative to the node the
// hop starts from.
type Direction string

const (
	// DirectionOut renders (from)-[...]->(to)
	DirectionOut Direction = "out"
	// DirectionIn renders (from)<-[...]-(to)
	DirectionIn Direction = "in"
	// DirectionBoth renders (from)-[...]-(to)
	DirectionBoth Direction = "both"
)

// ParseDirection accepts "out", "in", "both" or "" (treated as both),
// case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "outgoing", "->":
		return DirectionOut, true
	case "in", "incoming", "<-":
		return DirectionIn, true
	case "", "both", "any":
		return DirectionBoth, true
	default:
		return "", false
	}
}

// PropertyBinding constrains a node pattern property to a bound parameter.
// Key must already be sanitized; Param is the parameter name without "$".
type PropertyBinding struct {
	Key   string `json:"key"`
	Param string `json:"param"`
}

// NodePattern describes one node of a MATCH pattern.
type NodePattern struct {
	// Var is the pattern variable (e.g. "record", "record1")
	Var string `json:"var"`

	// Labels are sanitized labels, rendered in order
	Labels []string `json:"labels,omitempty"`

	// Props are inline property constraints, rendered in order
	Props []PropertyBinding `json:"props,omitempty"`
}

// RelationPattern describes the relationship part of a hop.
type RelationPattern struct {
	// Var is optional; empty renders an anonymous relationship
	Var string `json:"var,omitempty"`

	// Type is a sanitized relationship type; empty matches any type
	Type string `json:"type,omitempty"`

	// Direction defaults to DirectionBoth when empty
	Direction Direction `json:"direction,omitempty"`
}
