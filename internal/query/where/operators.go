package where

import (
	"fmt"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

// comparisonSymbols maps the binary operators to their Cypher symbol.
var comparisonSymbols = map[Operator]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

var stringOperators = map[Operator]string{
	OpContains:   "CONTAINS",
	OpStartsWith: "STARTS WITH",
	OpEndsWith:   "ENDS WITH",
}

// valueTypeTags maps a $type tag to the prefixes of valueType() results it
// accepts.
var valueTypeTags = map[string][]string{
	"string":   {"STRING"},
	"number":   {"INTEGER", "FLOAT"},
	"boolean":  {"BOOLEAN"},
	"datetime": {"ZONED DATETIME", "LOCAL DATETIME", "DATE"},
	"null":     {"NULL"},
	"vector":   {"LIST<FLOAT", "LIST<INTEGER"},
}

// condition compiles cond applied to target, a property access expression.
func (c *compiler) condition(target string, cond Condition, path string) (string, error) {
	switch cd := cond.(type) {
	case Compare:
		return c.compare(target, cd, path)
	case Exists:
		if cd.Present {
			return target + " IS NOT NULL", nil
		}
		return target + " IS NULL", nil
	case TypeIs:
		tags, ok := valueTypeTags[cd.Type]
		if !ok {
			return "", errs.Compilef("where", path, errs.ErrInvalidValue, "unknown type %q", cd.Type)
		}
		p := c.params.Bind(tags)
		return fmt.Sprintf("any(t IN %s WHERE valueType(%s) STARTS WITH t)", p, target), nil
	case DateParts:
		return c.dateParts(target, cd, path)
	case Vector:
		return c.vector(target, cd, path)
	case CondGroup:
		exprs := make([]string, 0, len(cd.Conds))
		for _, sub := range cd.Conds {
			e, err := c.condition(target, sub, joinPath(path, string(cd.Op)))
			if err != nil {
				return "", err
			}
			exprs = append(exprs, e)
		}
		return combine(cd.Op, exprs)
	case nil:
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "missing condition")
	default:
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "unsupported condition %T", cond)
	}
}

func (c *compiler) compare(target string, cmp Compare, path string) (string, error) {
	if sym, ok := comparisonSymbols[cmp.Op]; ok {
		if cmp.Value == nil {
			switch cmp.Op {
			case OpEq:
				return target + " IS NULL", nil
			case OpNe:
				return target + " IS NOT NULL", nil
			default:
				return "", errs.Compilef("where", path, errs.ErrInvalidValue, "%s does not accept null", cmp.Op)
			}
		}
		return fmt.Sprintf("%s %s %s", target, sym, c.params.Bind(cmp.Value)), nil
	}

	switch cmp.Op {
	case OpIn:
		return fmt.Sprintf("%s IN %s", target, c.params.Bind(cmp.Value)), nil
	case OpNin:
		return fmt.Sprintf("NOT %s IN %s", target, c.params.Bind(cmp.Value)), nil
	}

	if kw, ok := stringOperators[cmp.Op]; ok {
		if _, isString := cmp.Value.(string); !isString {
			return "", errs.Compilef("where", path, errs.ErrInvalidValue, "%s expects a string", cmp.Op)
		}
		return fmt.Sprintf("toLower(toString(%s)) %s toLower(%s)", target, kw, c.params.Bind(cmp.Value)), nil
	}

	return "", errs.Compilef("where", path, errs.ErrUnknownOperator, "%s", cmp.Op)
}
