package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query"
)

// SearchInput is the tool-facing shape of a search request. Tool arguments
// arrive decoded into Go maps, so object keys are re-encoded in sorted order;
// callers needing a sort priority pass orderBy as an array.
type SearchInput struct {
	Labels    []string       `json:"labels,omitempty" jsonschema:"description=Record labels to search. A record matches when it carries any of them. Empty searches every record."`
	Where     map[string]any `json:"where,omitempty" jsonschema:"description=Filter object. Keys are property names, relation labels or the connectives $and $or $not $xor $nor. Property values are literals or operator objects such as {\"$gt\": 5}."`
	Aggregate map[string]any `json:"aggregate,omitempty" jsonschema:"description=Output keys mapped to \"$alias.field\" or to {fn, alias, field, ...} with fn one of count sum min max avg collect timeBucket similarity."`
	GroupBy   []string       `json:"groupBy,omitempty" jsonschema:"description=Aggregate keys or $alias.field references to group rows by. Rows become groups instead of records."`
	OrderBy   any            `json:"orderBy,omitempty" jsonschema:"description=\"asc\" or \"desc\" on the record id, an object of key to direction, or an array of such objects in priority order."`
	Skip      int            `json:"skip,omitempty" jsonschema:"description=Records to skip (default 0)"`
	Limit     int            `json:"limit,omitempty" jsonschema:"description=Records to return, 1 to 1000 (default 100)"`
}

// Request converts the input into a compiler request.
func (in SearchInput) Request() (query.SearchRequest, error) {
	req := query.SearchRequest{
		Labels:  in.Labels,
		GroupBy: in.GroupBy,
		Skip:    in.Skip,
		Limit:   in.Limit,
	}

	var err error
	if req.Where, err = rawJSON(in.Where); err != nil {
		return query.SearchRequest{}, fmt.Errorf("invalid where: %w", err)
	}
	if req.Aggregate, err = rawJSON(in.Aggregate); err != nil {
		return query.SearchRequest{}, fmt.Errorf("invalid aggregate: %w", err)
	}
	if req.OrderBy, err = rawJSON(in.OrderBy); err != nil {
		return query.SearchRequest{}, fmt.Errorf("invalid orderBy: %w", err)
	}
	return req, nil
}

func rawJSON(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
