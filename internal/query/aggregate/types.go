// Package aggregate builds the projection pipeline of a search: per-level
// WITH stages for nested collects, the root projection, and the final RETURN.
package aggregate

// Ref points at a property of an aliased node. An empty Alias is the root.
type Ref struct {
	Alias string
	Field string
}

// Instruction is one entry of an aggregate map. The set of implementations
// is closed.
type Instruction interface {
	target() Ref
	// aggregating reports whether the instruction collapses rows. The others
	// are grouping expressions.
	aggregating() bool
}

// Field projects a property value.
type Field struct {
	Ref
}

// Count counts nodes, or non-null values when Field is set.
type Count struct {
	Ref
	Unique bool
}

// Reduce applies sum, min or max to a property.
type Reduce struct {
	Ref
	Fn string
}

// Avg averages a property. A nil Precision keeps the raw average, 0 rounds to
// an integer and N rounds to N decimals.
type Avg struct {
	Ref
	Precision *int
}

// SortKey orders collected maps.
type SortKey struct {
	Field     string
	Ascending bool
}

// Collect gathers nodes as maps (Field empty) or property values (Field set).
// Nested is evaluated per collected node and merged into its map.
type Collect struct {
	Ref
	Unique  bool
	Skip    int
	Limit   int
	OrderBy *SortKey
	Nested  Map
}

// TimeBucket maps a datetime property to the start of its bucket.
type TimeBucket struct {
	Ref
	Granularity string
	Size        int
}

// VectorScore computes a similarity score against Query.
type VectorScore struct {
	Ref
	Fn    string
	Query []float64
}

func (i Field) target() Ref       { return i.Ref }
func (i Count) target() Ref       { return i.Ref }
func (i Reduce) target() Ref      { return i.Ref }
func (i Avg) target() Ref         { return i.Ref }
func (i Collect) target() Ref     { return i.Ref }
func (i TimeBucket) target() Ref  { return i.Ref }
func (i VectorScore) target() Ref { return i.Ref }

func (Field) aggregating() bool       { return false }
func (Count) aggregating() bool       { return true }
func (Reduce) aggregating() bool      { return true }
func (Avg) aggregating() bool         { return true }
func (Collect) aggregating() bool     { return true }
func (TimeBucket) aggregating() bool  { return false }
func (VectorScore) aggregating() bool { return false }

// Entry binds an output key to an instruction.
type Entry struct {
	Key   string
	Instr Instruction
}

// Map is an ordered aggregate map. Output keys appear in this order.
type Map []Entry
