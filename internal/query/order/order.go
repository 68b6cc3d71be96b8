// Package order compiles sort specifications and pagination.
package order

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/buger/jsonparser"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/alias"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return "", errs.Compilef("orderBy", s, errs.ErrInvalidDirection, "%q", s)
	}
}

// Field is one sort key as written by the caller: an output key ("total"),
// a root property ("name") or an aliased property ("$record.name").
type Field struct {
	Key       string
	Direction Direction
}

// Spec is a parsed orderBy. With no Fields the root identity key is sorted
// in Direction (DESC when empty).
type Spec struct {
	Direction Direction
	Fields    []Field
}

// Parse reads an orderBy value: "asc", "desc", or an object mapping keys to
// directions, kept in document order.
func Parse(data []byte) (Spec, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Spec{}, nil
	}

	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Spec{}, errs.Compilef("orderBy", "orderBy", errs.ErrInvalidJSON, "%v", err)
	}

	switch dataType {
	case jsonparser.Null:
		return Spec{}, nil
	case jsonparser.String:
		dir, err := ParseDirection(string(value))
		if err != nil {
			return Spec{}, err
		}
		return Spec{Direction: dir}, nil
	case jsonparser.Object:
		var spec Spec
		if err := parseFields(value, &spec); err != nil {
			return Spec{}, err
		}
		return spec, nil
	case jsonparser.Array:
		// [{"total": "desc"}, {"name": "asc"}] keeps the sort priority when
		// the caller cannot preserve object key order.
		var spec Spec
		var inner error
		_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, _ error) {
			if inner != nil {
				return
			}
			if vt != jsonparser.Object {
				inner = errs.Compilef("orderBy", "orderBy", errs.ErrInvalidValue, "array entries must be objects, got %s", vt)
				return
			}
			inner = parseFields(v, &spec)
		})
		if inner != nil {
			return Spec{}, inner
		}
		if err != nil {
			return Spec{}, errs.Compilef("orderBy", "orderBy", errs.ErrInvalidJSON, "%v", err)
		}
		return spec, nil
	default:
		return Spec{}, errs.Compilef("orderBy", "orderBy", errs.ErrInvalidValue, "expected a direction, an object or an array, got %s", dataType)
	}
}

func parseFields(data []byte, spec *Spec) error {
	err := jsonparser.ObjectEach(data, func(key, v []byte, vt jsonparser.ValueType, _ int) error {
		if vt != jsonparser.String {
			return errs.Compilef("orderBy", string(key), errs.ErrInvalidDirection, "direction must be a string")
		}
		dir, err := ParseDirection(string(v))
		if err != nil {
			return err
		}
		spec.Fields = append(spec.Fields, Field{Key: string(key), Direction: dir})
		return nil
	})
	if err != nil {
		if errs.IsCompile(err) {
			return err
		}
		return errs.Compilef("orderBy", "orderBy", errs.ErrInvalidJSON, "%v", err)
	}
	return nil
}

// Scope describes what is visible where the ORDER BY is emitted: after the
// root projection, so only the root variable and the output keys.
type Scope struct {
	Registry *alias.Registry
	// Keys are the output keys of the aggregation.
	Keys map[string]bool
	// GroupBy is set when rows are groups rather than root records; record
	// properties are not visible then and no default ordering applies.
	GroupBy bool
}

// Compile renders the ORDER BY clause, or "" when nothing is sorted.
func Compile(ctx compilectx.Context, spec Spec, scope Scope) (string, error) {
	if len(spec.Fields) == 0 {
		if scope.GroupBy {
			return "", nil
		}
		dir := spec.Direction
		if dir == "" {
			dir = Desc
		}
		return fmt.Sprintf("ORDER BY %s %s", ctx.IdentityProperty(ctx.RootVar), dir), nil
	}

	tokens := make([]string, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		expr, ok, err := resolve(ctx, f.Key, scope)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		dir := f.Direction
		if dir == "" {
			dir = Asc
		}
		tokens = append(tokens, expr+" "+string(dir))
	}
	if len(tokens) == 0 {
		return "", nil
	}
	return "ORDER BY " + strings.Join(tokens, ", "), nil
}

// resolve returns the sort expression for key. ok is false when a lenient
// context skips an unknown alias.
func resolve(ctx compilectx.Context, key string, scope Scope) (string, bool, error) {
	if scope.Keys[key] {
		return qb.QuoteIdentifier(key), true, nil
	}

	field := key
	if strings.HasPrefix(key, "$") {
		aliasName, rest, found := strings.Cut(key, ".")
		if !found || rest == "" {
			return "", false, errs.Compilef("orderBy", key, errs.ErrInvalidValue, "expected $alias.field")
		}
		if !ctx.IsRootAlias(aliasName) {
			if scope.Registry != nil {
				if _, known := scope.Registry.Resolve(aliasName); known {
					return "", false, errs.Compilef("orderBy", key, errs.ErrInvalidValue,
						"%s is not visible after the record projection; sort on an aggregate key instead", aliasName)
				}
			}
			if ctx.LenientAliases {
				slog.Warn("Skipping sort on unknown alias", "key", key)
				return "", false, nil
			}
			return "", false, errs.Compilef("orderBy", key, errs.ErrUnknownAlias, "%s", aliasName)
		}
		field = rest
	}

	if scope.GroupBy {
		return "", false, errs.Compilef("orderBy", key, errs.ErrInvalidValue, "only output keys can be sorted when grouping")
	}

	sanitized := qb.SanitizeIdentifier(field)
	if sanitized == "" {
		return "", false, errs.Compilef("orderBy", key, errs.ErrInvalidIdentifier, "%q", field)
	}
	return qb.Property(ctx.RootVar, sanitized), true, nil
}
