package order

import "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is a clamped pagination window.
type Page struct {
	Skip  int
	Limit int
}

// NewPage clamps skip and limit: limit <= 0 becomes DefaultLimit, limit above
// MaxLimit becomes MaxLimit, negative skip becomes 0.
func NewPage(skip, limit int) Page {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if skip < 0 {
		skip = 0
	}
	return Page{Skip: skip, Limit: limit}
}

// Clauses binds the window as $skip and $limit.
func (p Page) Clauses(params *compilectx.Params) []string {
	return []string{
		"SKIP " + params.Set("skip", p.Skip),
		"LIMIT " + params.Set("limit", p.Limit),
	}
}
