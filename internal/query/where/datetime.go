package where

import (
	"fmt"
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

// dateParts compiles a datetime component test. Equality checks each given
// component; ordering operators compare whole datetimes built from the
// components, which requires a year.
func (c *compiler) dateParts(target string, dp DateParts, path string) (string, error) {
	if len(dp.Parts) == 0 {
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "empty datetime object")
	}
	for _, p := range dp.Parts {
		if !isDatePartKey("$" + p.Unit) {
			return "", errs.Compilef("where", path, errs.ErrUnknownOperator, "$%s", p.Unit)
		}
	}

	switch dp.Op {
	case OpEq:
		return c.datePartsEqual(target, dp.Parts), nil
	case OpNe:
		return "NOT (" + strings.Join(c.datePartsList(target, dp.Parts), " AND ") + ")", nil
	}

	sym, ok := comparisonSymbols[dp.Op]
	if !ok {
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "%s does not accept datetime components", dp.Op)
	}

	components := make(map[string]any, len(dp.Parts))
	for _, p := range dp.Parts {
		components[p.Unit] = p.Value
	}
	if _, ok := components["year"]; !ok {
		return "", errs.Compilef("where", path, errs.ErrInvalidValue, "%s on datetime components requires $year", dp.Op)
	}
	return fmt.Sprintf("datetime(%s) %s datetime(%s)", target, sym, c.params.Bind(components)), nil
}

func (c *compiler) datePartsEqual(target string, parts []DatePart) string {
	return group(c.datePartsList(target, parts), " AND ")
}

func (c *compiler) datePartsList(target string, parts []DatePart) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, fmt.Sprintf("datetime(%s).%s = %s", target, p.Unit, c.params.Bind(p.Value)))
	}
	return out
}
