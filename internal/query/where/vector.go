package where

import (
	"fmt"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

// VectorFunction is a whitelisted similarity or distance function.
type VectorFunction struct {
	// Name is the Cypher function name.
	Name string
	// Distance is set when smaller scores mean closer vectors.
	Distance bool
}

// DefaultOperator is the comparator used when a threshold is a bare number.
func (f VectorFunction) DefaultOperator() Operator {
	if f.Distance {
		return OpLte
	}
	return OpGte
}

// Call renders the function applied to a property and a query parameter.
func (f VectorFunction) Call(target, queryParam string) string {
	return fmt.Sprintf("%s(%s, %s)", f.Name, target, queryParam)
}

var vectorFunctions = map[string]VectorFunction{
	"cosine":                           {Name: "gds.similarity.cosine"},
	"euclidean":                        {Name: "gds.similarity.euclidean"},
	"euclideanDistance":                {Name: "gds.similarity.euclideanDistance", Distance: true},
	"jaccard":                          {Name: "gds.similarity.jaccard"},
	"overlap":                          {Name: "gds.similarity.overlap"},
	"pearson":                          {Name: "gds.similarity.pearson"},
	"gds.similarity.cosine":            {Name: "gds.similarity.cosine"},
	"gds.similarity.euclidean":         {Name: "gds.similarity.euclidean"},
	"gds.similarity.euclideanDistance": {Name: "gds.similarity.euclideanDistance", Distance: true},
	"gds.similarity.jaccard":           {Name: "gds.similarity.jaccard"},
	"gds.similarity.overlap":           {Name: "gds.similarity.overlap"},
	"gds.similarity.pearson":           {Name: "gds.similarity.pearson"},
	"vector.similarity.cosine":         {Name: "vector.similarity.cosine"},
	"vector.similarity.euclidean":      {Name: "vector.similarity.euclidean"},
}

// LookupVectorFunction resolves a function name from the whitelist. Short
// names ("cosine") and qualified names ("gds.similarity.cosine") are accepted.
func LookupVectorFunction(name string) (VectorFunction, bool) {
	fn, ok := vectorFunctions[name]
	return fn, ok
}

func (c *compiler) vector(target string, v Vector, path string) (string, error) {
	fn, ok := LookupVectorFunction(v.Fn)
	if !ok {
		return "", errs.Compilef("where", path, errs.ErrMalformedVector, "unknown function %q", v.Fn)
	}
	if len(v.Query) == 0 {
		return "", errs.Compilef("where", path, errs.ErrMalformedVector, "query must be a non-empty number array")
	}

	op := v.Op
	if op == "" {
		op = fn.DefaultOperator()
	}
	sym, ok := comparisonSymbols[op]
	if !ok {
		return "", errs.Compilef("where", path, errs.ErrMalformedVector, "unsupported threshold operator %s", op)
	}

	call := fn.Call(target, c.params.Bind(v.Query))
	return fmt.Sprintf("%s %s %s", call, sym, c.params.Bind(v.Threshold)), nil
}
