// Package query assembles the filter, aggregation and sort stages into one
// compiled query per search request.
package query

import (
	"encoding/json"
	"log/slog"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/aggregate"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/order"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
)

// SearchRequest is the input of one search. Where, Aggregate and OrderBy are
// kept as raw JSON so their keys are compiled in document order.
type SearchRequest struct {
	Labels    []string        `json:"labels,omitempty"`
	Where     json.RawMessage `json:"where,omitempty"`
	Aggregate json.RawMessage `json:"aggregate,omitempty"`
	GroupBy   []string        `json:"groupBy,omitempty"`
	OrderBy   json.RawMessage `json:"orderBy,omitempty"`
	Skip      int             `json:"skip,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// Compiled is the query text and the values it references.
type Compiled struct {
	Cypher string         `json:"cypher"`
	Params map[string]any `json:"params"`
	// Aliases maps every declared alias to its pattern variable.
	Aliases map[string]string `json:"aliases,omitempty"`
}

// ParseRequest decodes a JSON search request.
func ParseRequest(data []byte) (SearchRequest, error) {
	var req SearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return SearchRequest{}, errs.Compilef("request", "", errs.ErrInvalidJSON, "%v", err)
	}
	return req, nil
}

// Compile turns req into a single read query returning one row with a
// "records" list. Either the whole request compiles or an error is returned;
// no partial text is produced.
//
// Clause order:
//
//	MATCH <root> / MATCH <hops> / WHERE <predicate>
//	WITH <aggregation stages, innermost first>
//	ORDER BY / SKIP / LIMIT
//	RETURN collect(...) AS records
func Compile(ctx compilectx.Context, req SearchRequest) (*Compiled, error) {
	filter, err := where.Parse(req.Where)
	if err != nil {
		return nil, err
	}
	aggregates, err := aggregate.Parse(req.Aggregate)
	if err != nil {
		return nil, err
	}
	sort, err := order.Parse(req.OrderBy)
	if err != nil {
		return nil, err
	}
	return CompileParsed(ctx, Parsed{
		Labels:    req.Labels,
		Where:     filter,
		Aggregate: aggregates,
		GroupBy:   req.GroupBy,
		OrderBy:   sort,
		Page:      order.NewPage(req.Skip, req.Limit),
	})
}

// Parsed is a SearchRequest whose JSON parts are already decoded.
type Parsed struct {
	Labels    []string
	Where     where.Node
	Aggregate aggregate.Map
	GroupBy   []string
	OrderBy   order.Spec
	Page      order.Page
}

// CompileParsed is Compile for callers that build the trees in code.
func CompileParsed(ctx compilectx.Context, p Parsed) (*Compiled, error) {
	params := ctx.Params()

	filter, err := where.Compile(ctx, p.Where, p.Labels, params)
	if err != nil {
		return nil, err
	}

	plan, err := aggregate.Build(ctx, p.Aggregate, aggregate.Options{
		Registry: filter.Registry,
		Params:   params,
		GroupBy:  p.GroupBy,
	})
	if err != nil {
		return nil, err
	}

	orderBy, err := order.Compile(ctx, p.OrderBy, order.Scope{
		Registry: filter.Registry,
		Keys:     plan.KeySet(),
		GroupBy:  plan.GroupBy,
	})
	if err != nil {
		return nil, err
	}

	b := qb.NewClauseBuilder()
	b.AddClauses(filter.Clauses()...)
	b.AddClauses(plan.Stages...)
	b.AddClause(orderBy)
	b.AddClauses(p.Page.Clauses(params)...)
	b.AddClause(plan.Return)

	compiled := &Compiled{
		Cypher:  b.Build(),
		Params:  params.Values(),
		Aliases: filter.Aliases(),
	}

	slog.Debug("Compiled search", "cypher", compiled.Cypher, "params", len(compiled.Params))
	return compiled, nil
}
