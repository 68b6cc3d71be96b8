package aggregate

import (
	"fmt"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/order"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
)

// renderer turns resolved instructions into Cypher expressions.
type renderer struct {
	ctx    compilectx.Context
	params *compilectx.Params
}

// render returns the expression of e. childKeys are the output keys of a
// nested collect, already computed by an inner stage.
func (r *renderer) render(e *resolved, childKeys []string) (string, error) {
	v := e.node.Var
	field := e.field

	switch in := e.entry.Instr.(type) {
	case Field:
		return qb.Property(v, field), nil

	case Count:
		target := v
		if field != "" {
			target = qb.Property(v, field)
		}
		if in.Unique {
			return fmt.Sprintf("count(DISTINCT %s)", target), nil
		}
		return fmt.Sprintf("count(%s)", target), nil

	case Reduce:
		return fmt.Sprintf("%s(%s)", in.Fn, qb.Property(v, field)), nil

	case Avg:
		avg := fmt.Sprintf("avg(%s)", qb.Property(v, field))
		switch {
		case in.Precision == nil:
			return avg, nil
		case *in.Precision == 0:
			return fmt.Sprintf("toInteger(round(%s))", avg), nil
		default:
			return fmt.Sprintf("round(%s, %d)", avg, *in.Precision), nil
		}

	case Collect:
		return r.collect(v, field, in, childKeys, e.path)

	case TimeBucket:
		g, err := ParseGranularity(in.Granularity, in.Size)
		if err != nil {
			return "", err
		}
		return g.Expression(qb.Property(v, field)), nil

	case VectorScore:
		fn, ok := where.LookupVectorFunction(in.Fn)
		if !ok {
			return "", errs.Compilef("aggregate", e.path, errs.ErrUnknownFunction, "%q", in.Fn)
		}
		if len(in.Query) == 0 {
			return "", errs.Compilef("aggregate", e.path, errs.ErrMalformedVector, "query must be a non-empty number array")
		}
		return fn.Call(qb.Property(v, field), r.params.Bind(in.Query)), nil

	default:
		return "", errs.Compilef("aggregate", e.path, errs.ErrUnknownFunction, "%T", e.entry.Instr)
	}
}

// collect renders the map form (field empty) or the scalar form.
func (r *renderer) collect(v, field string, in Collect, childKeys []string, path string) (string, error) {
	page := order.NewPage(in.Skip, in.Limit)
	slice := fmt.Sprintf("[%d..%d]", page.Skip, page.Skip+page.Limit)

	if field != "" {
		var collected string
		if in.Unique {
			collected = fmt.Sprintf("collect(DISTINCT %s)", qb.Property(v, field))
		} else {
			collected = fmt.Sprintf("collect(%s)", qb.Property(v, field))
		}
		if r.ctx.EmptyMarker != nil {
			collected = fmt.Sprintf("[x IN %s WHERE x <> %s]", collected, r.params.Set("empty", r.ctx.EmptyMarker))
		}
		return fmt.Sprintf("apoc.coll.sort(%s)%s", collected, slice), nil
	}

	projection := r.ctx.RecordProjection(v)
	for _, k := range childKeys {
		projection.AddExpression(k, qb.QuoteIdentifier(k))
	}

	sortKey := r.ctx.IdentityKey
	ascending := false
	if in.OrderBy != nil {
		ascending = in.OrderBy.Ascending
		if in.OrderBy.Field != "" {
			sortKey = qb.SanitizeIdentifier(in.OrderBy.Field)
			if sortKey == "" {
				return "", errs.Compilef("aggregate", path, errs.ErrInvalidIdentifier, "orderBy %q", in.OrderBy.Field)
			}
		}
	}
	if ascending {
		sortKey = "^" + sortKey
	}

	return fmt.Sprintf("apoc.coll.sortMaps(%s, %s)%s",
		projection.BuildCollect(in.Unique), qb.StringLiteral(sortKey), slice), nil
}
