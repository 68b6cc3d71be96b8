package aggregate

import (
	"bytes"
	"strings"

	"github.com/buger/jsonparser"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/order"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
)

// Function names accepted in the fn key.
const (
	FnField      = "field"
	FnCount      = "count"
	FnSum        = "sum"
	FnMin        = "min"
	FnMax        = "max"
	FnAvg        = "avg"
	FnCollect    = "collect"
	FnTimeBucket = "timeBucket"
	FnSimilarity = "similarity"
	FnVector     = "vector"
)

// Parse reads an aggregate map. Keys keep document order.
//
// Example:
//
//	{
//	  "title": "$post.title",
//	  "total": {"fn": "count", "alias": "$post"},
//	  "posts": {"fn": "collect", "alias": "$post", "orderBy": {"title": "asc"}, "limit": 10}
//	}
func Parse(data []byte) (Map, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, errs.Compilef("aggregate", "aggregate", errs.ErrInvalidJSON, "%v", err)
	}
	switch dataType {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return parseMap(value, "aggregate")
	default:
		return nil, errs.Compilef("aggregate", "aggregate", errs.ErrInvalidValue, "expected an object, got %s", dataType)
	}
}

// ParseRef splits "$alias.field" into its parts. A value without a leading
// "$" names a root property.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "$") {
		return Ref{Field: s}
	}
	aliasName, field, _ := strings.Cut(s, ".")
	return Ref{Alias: aliasName, Field: field}
}

func parseMap(data []byte, path string) (Map, error) {
	var m Map
	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		keyPath := path + "." + key

		switch dataType {
		case jsonparser.String:
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return errs.Compilef("aggregate", keyPath, errs.ErrInvalidJSON, "%v", err)
			}
			m = append(m, Entry{Key: key, Instr: Field{Ref: ParseRef(s)}})
		case jsonparser.Object:
			instr, err := parseInstruction(value, keyPath)
			if err != nil {
				return err
			}
			m = append(m, Entry{Key: key, Instr: instr})
		default:
			return errs.Compilef("aggregate", keyPath, errs.ErrInvalidValue, "expected \"$alias.field\" or an instruction object")
		}
		return nil
	})
	if err != nil {
		if errs.IsCompile(err) {
			return nil, err
		}
		return nil, errs.Compilef("aggregate", path, errs.ErrInvalidJSON, "%v", err)
	}
	return m, nil
}

type rawInstruction struct {
	fn          string
	ref         Ref
	metric      string
	granularity string
	unique      *bool
	precision   *int
	skip        int
	limit       int
	size        int
	orderBy     *SortKey
	query       []float64
	nested      Map
	hasNested   bool
}

func parseInstruction(data []byte, path string) (Instruction, error) {
	var raw rawInstruction
	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		keyPath := path + "." + key
		return raw.set(key, value, dataType, keyPath)
	})
	if err != nil {
		if errs.IsCompile(err) {
			return nil, err
		}
		return nil, errs.Compilef("aggregate", path, errs.ErrInvalidJSON, "%v", err)
	}

	if raw.hasNested && raw.fn != FnCollect {
		return nil, errs.Compilef("aggregate", path, errs.ErrInvalidValue, "nested aggregate is only allowed on collect")
	}

	unique := raw.unique == nil || *raw.unique

	switch raw.fn {
	case FnField:
		return Field{Ref: raw.ref}, nil
	case FnCount:
		// A field count tallies non-null values; a node count stays distinct
		// so sibling hops do not multiply it.
		if raw.unique == nil && raw.ref.Field != "" {
			unique = false
		}
		return Count{Ref: raw.ref, Unique: unique}, nil
	case FnSum, FnMin, FnMax:
		return Reduce{Ref: raw.ref, Fn: raw.fn}, nil
	case FnAvg:
		return Avg{Ref: raw.ref, Precision: raw.precision}, nil
	case FnCollect:
		return Collect{
			Ref:     raw.ref,
			Unique:  unique,
			Skip:    raw.skip,
			Limit:   raw.limit,
			OrderBy: raw.orderBy,
			Nested:  raw.nested,
		}, nil
	case FnTimeBucket:
		return TimeBucket{Ref: raw.ref, Granularity: raw.granularity, Size: raw.size}, nil
	case FnSimilarity, FnVector:
		metric := raw.metric
		if metric == "" {
			metric = "cosine"
		}
		return VectorScore{Ref: raw.ref, Fn: metric, Query: raw.query}, nil
	case "":
		return nil, errs.Compilef("aggregate", path, errs.ErrUnknownFunction, "fn is required")
	}

	if _, ok := where.LookupVectorFunction(raw.fn); ok {
		return VectorScore{Ref: raw.ref, Fn: raw.fn, Query: raw.query}, nil
	}
	return nil, errs.Compilef("aggregate", path, errs.ErrUnknownFunction, "%q", raw.fn)
}

func (r *rawInstruction) set(key string, value []byte, dataType jsonparser.ValueType, path string) error {
	str := func() (string, error) {
		if dataType != jsonparser.String {
			return "", errs.Compilef("aggregate", path, errs.ErrInvalidValue, "%s must be a string", key)
		}
		return jsonparser.ParseString(value)
	}
	integer := func() (int, error) {
		if dataType != jsonparser.Number {
			return 0, errs.Compilef("aggregate", path, errs.ErrInvalidValue, "%s must be an integer", key)
		}
		n, err := jsonparser.ParseInt(value)
		if err != nil {
			return 0, errs.Compilef("aggregate", path, errs.ErrInvalidValue, "%s must be an integer", key)
		}
		return int(n), nil
	}

	var err error
	switch key {
	case "fn":
		r.fn, err = str()
	case "alias":
		r.ref.Alias, err = str()
	case "field":
		r.ref.Field, err = str()
	case "metric":
		r.metric, err = str()
	case "granularity":
		r.granularity, err = str()
	case "unique":
		if dataType != jsonparser.Boolean {
			return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "unique must be a boolean")
		}
		b, perr := jsonparser.ParseBoolean(value)
		if perr != nil {
			return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "%v", perr)
		}
		r.unique = &b
	case "precision":
		if dataType == jsonparser.Null {
			return nil
		}
		n, ierr := integer()
		if ierr != nil {
			return ierr
		}
		if n < 0 {
			return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "precision must not be negative")
		}
		r.precision = &n
	case "skip":
		r.skip, err = integer()
	case "limit":
		r.limit, err = integer()
	case "size":
		r.size, err = integer()
	case "orderBy":
		r.orderBy, err = parseCollectOrder(value, dataType, path)
	case "query":
		r.query, err = parseQueryVector(value, dataType, path)
	case "aggregate":
		if dataType != jsonparser.Object {
			return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "aggregate must be an object")
		}
		r.nested, err = parseMap(value, path)
		r.hasNested = true
	default:
		return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "unknown key %q", key)
	}
	return err
}

// parseCollectOrder reads "asc"/"desc" (identity key) or {"field": "asc"}.
func parseCollectOrder(value []byte, dataType jsonparser.ValueType, path string) (*SortKey, error) {
	switch dataType {
	case jsonparser.String:
		dir, err := order.ParseDirection(string(value))
		if err != nil {
			return nil, errs.Compilef("aggregate", path, errs.ErrInvalidDirection, "%q", value)
		}
		return &SortKey{Ascending: dir == order.Asc}, nil
	case jsonparser.Object:
		var key *SortKey
		err := jsonparser.ObjectEach(value, func(rawKey, v []byte, vt jsonparser.ValueType, _ int) error {
			if key != nil {
				return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "collect accepts a single sort key")
			}
			if vt != jsonparser.String {
				return errs.Compilef("aggregate", path, errs.ErrInvalidDirection, "direction must be a string")
			}
			dir, err := order.ParseDirection(string(v))
			if err != nil {
				return errs.Compilef("aggregate", path, errs.ErrInvalidDirection, "%q", v)
			}
			key = &SortKey{Field: string(rawKey), Ascending: dir == order.Asc}
			return nil
		})
		if err != nil {
			if errs.IsCompile(err) {
				return nil, err
			}
			return nil, errs.Compilef("aggregate", path, errs.ErrInvalidJSON, "%v", err)
		}
		return key, nil
	default:
		return nil, errs.Compilef("aggregate", path, errs.ErrInvalidDirection, "orderBy must be a direction or an object")
	}
}

func parseQueryVector(value []byte, dataType jsonparser.ValueType, path string) ([]float64, error) {
	if dataType != jsonparser.Array {
		return nil, errs.Compilef("aggregate", path, errs.ErrMalformedVector, "query must be a number array")
	}
	var out []float64
	var parseErr error
	_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil {
			return
		}
		f, err := jsonparser.ParseFloat(item)
		if err != nil || itemType != jsonparser.Number {
			parseErr = errs.Compilef("aggregate", path, errs.ErrMalformedVector, "query must be a number array")
			return
		}
		out = append(out, f)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if err != nil {
		return nil, errs.Compilef("aggregate", path, errs.ErrInvalidJSON, "%v", err)
	}
	return out, nil
}
