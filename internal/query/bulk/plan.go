// Package bulk plans and runs batched relationship mutations between two
// filtered node sets.
//
// A plan has two phases. The source query streams every matching source
// node; the action query runs once per source node, finds the matching
// targets and creates or removes the edge. Targets are joined to sources
// either by key equality or, when ManyToMany is set, by the target filter
// alone. ManyToMany requires a real filter on both sides; without one the
// action would touch the full cross product of two labels.
package bulk

import (
	"fmt"
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
)

const (
	DefaultBatchSize = 1000
	DefaultRetries   = 5
	MaxBatchSize     = 100000
	MaxRetries       = 20

	sourceVar    = "source"
	targetVar    = "target"
	relVar       = "rel"
	sourcePrefix = "s"
	targetPrefix = "t"
)

// Mutation is the edge operation of a plan.
type Mutation string

const (
	Create Mutation = "create"
	Delete Mutation = "delete"
)

// Side is one end of the join.
type Side struct {
	Label string
	// Key is the property compared with the other side's key.
	Key string
	// Filter restricts the side; nil matches every node with Label.
	Filter where.Node
}

// JoinSpec describes which pairs to connect.
type JoinSpec struct {
	Source Side
	Target Side
	// Type is the relationship type; empty uses the context default.
	Type string
	// Direction is relative to the source node; empty means outgoing.
	Direction  qb.Direction
	ManyToMany bool
	// BatchSize 0 uses DefaultBatchSize. Retries nil uses DefaultRetries;
	// a pointer to 0 disables retries.
	BatchSize int
	Retries   *int
}

// Plan is a validated, compiled JoinSpec.
type Plan struct {
	Mutation Mutation
	// SourceQuery returns every matching source node as "source".
	SourceQuery string
	// ActionQuery starts from a bound "source" and mutates its edges.
	ActionQuery string
	// Params are the values referenced by both queries.
	Params    map[string]any
	BatchSize int
	Retries   int
	Type      string

	sourceMatch []string
	sourcePred  string
	countExpr   string
}

// NewPlan validates spec and compiles both sides. It fails with a
// configuration error when join keys or ManyToMany filters are missing, and
// with a compile error when a filter does not compile.
func NewPlan(ctx compilectx.Context, spec JoinSpec, mutation Mutation) (*Plan, error) {
	if mutation != Create && mutation != Delete {
		return nil, errs.Configuration("bulk", fmt.Errorf("%w: unknown mutation %q", errs.ErrInvalidBatchConfig, mutation))
	}

	sourceLabel := qb.SanitizeIdentifier(spec.Source.Label)
	targetLabel := qb.SanitizeIdentifier(spec.Target.Label)
	if sourceLabel == "" || targetLabel == "" {
		return nil, errs.Configuration("bulk", fmt.Errorf("%w: source and target labels must not be empty", errs.ErrLabelRequired))
	}

	sourceKey := qb.SanitizeIdentifier(spec.Source.Key)
	targetKey := qb.SanitizeIdentifier(spec.Target.Key)
	if !spec.ManyToMany && (sourceKey == "" || targetKey == "") {
		return nil, errs.Configuration("bulk", errs.ErrJoinKeysRequired)
	}
	if (sourceKey == "") != (targetKey == "") {
		return nil, errs.Configuration("bulk", fmt.Errorf("%w: both keys or neither", errs.ErrJoinKeysRequired))
	}

	batchSize, retries, err := batchSettings(spec)
	if err != nil {
		return nil, err
	}

	relType := ctx.DefaultRelationType
	if spec.Type != "" {
		relType = qb.SanitizeIdentifier(spec.Type)
		if relType == "" {
			return nil, errs.Configuration("bulk", fmt.Errorf("%w: relationship type %q", errs.ErrInvalidIdentifier, spec.Type))
		}
	}

	direction := spec.Direction
	if direction == "" {
		direction = qb.DirectionOut
	}

	sourceParams := compilectx.NewParams(sourcePrefix)
	source, err := where.Compile(ctx.WithRoot("$source", sourceVar).WithParamPrefix(sourcePrefix),
		spec.Source.Filter, []string{sourceLabel}, sourceParams)
	if err != nil {
		return nil, err
	}
	targetParams := compilectx.NewParams(targetPrefix)
	target, err := where.Compile(ctx.WithRoot("$target", targetVar).WithParamPrefix(targetPrefix),
		spec.Target.Filter, []string{targetLabel}, targetParams)
	if err != nil {
		return nil, err
	}

	if spec.ManyToMany && (source.Predicate == "" || target.Predicate == "" ||
		where.MatchesAll(spec.Source.Filter) || where.MatchesAll(spec.Target.Filter)) {
		return nil, errs.Configuration("bulk", errs.ErrManyToManyFilters)
	}

	params := sourceParams.Values()
	for k, v := range targetParams.Values() {
		params[k] = v
	}

	p := &Plan{
		Mutation:    mutation,
		Params:      params,
		BatchSize:   batchSize,
		Retries:     retries,
		Type:        relType,
		sourceMatch: matchClauses(source.Patterns),
		sourcePred:  source.Predicate,
	}

	sq := qb.NewClauseBuilder()
	sq.AddClauses(p.sourceMatch...)
	sq.AddWhere(source.Predicate)
	sq.AddClause("RETURN DISTINCT " + sourceVar)
	p.SourceQuery = sq.Build()

	var conds []string
	if sourceKey != "" {
		conds = append(conds, fmt.Sprintf("%s = %s", qb.Property(sourceVar, sourceKey), qb.Property(targetVar, targetKey)))
	}
	if target.Predicate != "" {
		conds = append(conds, target.Predicate)
	}

	aq := qb.NewClauseBuilder()
	aq.AddClause("WITH " + sourceVar)
	aq.AddClauses(matchClauses(target.Patterns)...)
	aq.AddWhere(strings.Join(conds, " AND "))
	switch mutation {
	case Create:
		aq.AddClause("MERGE " + edge(sourceVar, "", relType, direction))
		p.countExpr = "count(*)"
	case Delete:
		aq.AddOptionalMatch(edge(sourceVar, relVar, relType, direction))
		aq.AddClause("DELETE " + relVar)
		p.countExpr = fmt.Sprintf("count(%s)", relVar)
	}
	p.ActionQuery = aq.Build()

	return p, nil
}

// KeysetQuery returns the ids of the next BatchSize source nodes whose id
// sorts after $cursor.
func (p *Plan) KeysetQuery() string {
	cursor := fmt.Sprintf("elementId(%s) > $cursor", sourceVar)
	pred := cursor
	if p.sourcePred != "" {
		pred = p.sourcePred + " AND " + cursor
	}

	b := qb.NewClauseBuilder()
	b.AddClauses(p.sourceMatch...)
	b.AddWhere(pred)
	b.AddClauses(
		"WITH DISTINCT "+sourceVar,
		fmt.Sprintf("ORDER BY elementId(%s)", sourceVar),
		"LIMIT $batchSize",
		fmt.Sprintf("RETURN elementId(%s) AS id", sourceVar),
	)
	return b.Build()
}

// ChunkQuery runs the action for the source nodes listed in $ids and returns
// the number of affected pairs as "affected".
func (p *Plan) ChunkQuery() string {
	b := qb.NewClauseBuilder()
	b.AddMatch(fmt.Sprintf("(%s)", sourceVar))
	b.AddWhere(fmt.Sprintf("elementId(%s) IN $ids", sourceVar))
	b.AddClause(p.ActionQuery)
	b.AddClause(fmt.Sprintf("RETURN %s AS affected", p.countExpr))
	return b.Build()
}

func batchSettings(spec JoinSpec) (int, int, error) {
	batchSize, retries := spec.BatchSize, DefaultRetries
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if spec.Retries != nil {
		retries = *spec.Retries
	}
	if batchSize < 0 || batchSize > MaxBatchSize {
		return 0, 0, errs.Configuration("bulk", fmt.Errorf("%w: batch size must be in 1..%d", errs.ErrInvalidBatchConfig, MaxBatchSize))
	}
	if retries < 0 || retries > MaxRetries {
		return 0, 0, errs.Configuration("bulk", fmt.Errorf("%w: retries must be in 0..%d", errs.ErrInvalidBatchConfig, MaxRetries))
	}
	return batchSize, retries, nil
}

func matchClauses(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, "MATCH "+p)
	}
	return out
}

// edge renders (source)-[var:TYPE]->(target) in the requested direction.
func edge(from, varName, relType string, direction qb.Direction) string {
	return qb.Hop(from, qb.RelationPattern{Var: varName, Type: relType, Direction: direction}, qb.NodePattern{Var: targetVar})
}
