package compilectx

import (
	"fmt"
	"maps"
)

// Params allocates parameter names for one compile call. Names are generated
// in call order, so compiling the same input twice yields the same names.
// A Params is not safe for concurrent use; each compile owns its own.
type Params struct {
	prefix string
	next   int
	values map[string]any
}

// NewParams creates an allocator generating prefix0, prefix1, ...
func NewParams(prefix string) *Params {
	if prefix == "" {
		prefix = DefaultParamPrefix
	}
	return &Params{
		prefix: prefix,
		values: make(map[string]any),
	}
}

// Params returns an allocator configured with the context's prefix.
func (c Context) Params() *Params {
	return NewParams(c.ParamPrefix)
}

// Bind stores value under the next generated name and returns the reference
// to use in query text (e.g. "$p3").
func (p *Params) Bind(value any) string {
	name := fmt.Sprintf("%s%d", p.prefix, p.next)
	p.next++
	p.values[name] = value
	return "$" + name
}

// Set stores value under a fixed name and returns its reference.
func (p *Params) Set(name string, value any) string {
	p.values[name] = value
	return "$" + name
}

// Len returns the number of parameters bound so far.
func (p *Params) Len() int {
	return len(p.values)
}

// Values returns a copy of the bound parameters.
func (p *Params) Values() map[string]any {
	return maps.Clone(p.values)
}

// Merge copies other into p. Existing names are overwritten.
func (p *Params) Merge(other map[string]any) {
	maps.Copy(p.values, other)
}
