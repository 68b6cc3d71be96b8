package where

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
)

const (
	keyID       = "$id"
	keyAlias    = "$alias"
	keyRelation = "$relation"
	keyExists   = "$exists"
	keyType     = "$type"
	keyVector   = "$vector"
)

var logicalOps = map[string]LogicalOp{
	string(OpAnd): OpAnd,
	string(OpOr):  OpOr,
	string(OpNot): OpNot,
	string(OpXor): OpXor,
	string(OpNor): OpNor,
}

var compareOps = map[string]Operator{
	string(OpNe):         OpNe,
	string(OpGt):         OpGt,
	string(OpGte):        OpGte,
	string(OpLt):         OpLt,
	string(OpLte):        OpLte,
	string(OpIn):         OpIn,
	string(OpNin):        OpNin,
	string(OpContains):   OpContains,
	string(OpStartsWith): OpStartsWith,
	string(OpEndsWith):   OpEndsWith,
}

// datePartUnits lists the datetime component keys in canonical order.
var datePartUnits = []string{"year", "month", "day", "hour", "minute", "second", "millisecond", "microsecond", "nanosecond"}

func isDatePartKey(key string) bool {
	if !strings.HasPrefix(key, "$") {
		return false
	}
	for _, unit := range datePartUnits {
		if key[1:] == unit {
			return true
		}
	}
	return false
}

// Parse reads a JSON filter. Object keys are visited in document order, so
// the same document always compiles to the same text. Empty input, null and
// {} yield a nil Node that matches every record.
func Parse(data []byte) (Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, errs.Compilef("where", "where", errs.ErrInvalidJSON, "%v", err)
	}
	switch dataType {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return parseObject(value, "where")
	default:
		return nil, errs.Compilef("where", "where", errs.ErrInvalidValue, "filter must be an object, got %s", dataType)
	}
}

// FromMap converts a decoded filter. Go maps carry no key order, so keys are
// visited in sorted order.
func FromMap(m map[string]any) (Node, error) {
	if len(m) == 0 {
		return nil, nil
	}
	// encoding/json writes map keys sorted.
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Compilef("where", "where", errs.ErrInvalidValue, "%v", err)
	}
	return Parse(data)
}

// parseObject turns a filter object into a node. Several keys form an
// implicit conjunction.
func parseObject(data []byte, path string) (Node, error) {
	var children []Node
	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		child, err := parseEntry(key, value, dataType, joinPath(path, key))
		if err != nil {
			return err
		}
		if child != nil {
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, asCompileError(err, path)
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return Logical{Op: OpAnd, Children: children}, nil
	}
}

func parseEntry(key string, value []byte, dataType jsonparser.ValueType, path string) (Node, error) {
	if op, ok := logicalOps[key]; ok {
		return parseLogical(op, value, dataType, path)
	}

	switch key {
	case keyID:
		cond, err := parseValueOrCondition(value, dataType, path)
		if err != nil {
			return nil, err
		}
		return ID{Cond: cond}, nil
	case keyAlias, keyRelation:
		return nil, errs.Compilef("where", path, errs.ErrMalformedRelation, "%s is only valid inside a related label", key)
	}

	if strings.HasPrefix(key, "$") {
		return nil, errs.Compilef("where", path, errs.ErrUnknownOperator, "%s", key)
	}

	if dataType == jsonparser.Object {
		if isRelationObject(value) {
			return parseRelation(key, value, path)
		}
		cond, err := parseCondition(value, path)
		if err != nil {
			return nil, err
		}
		return Property{Field: key, Cond: cond}, nil
	}

	v, err := decodeValue(value, dataType)
	if err != nil {
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%v", err)
	}
	return Property{Field: key, Cond: Compare{Op: OpEq, Value: v}}, nil
}

func parseLogical(op LogicalOp, value []byte, dataType jsonparser.ValueType, path string) (Node, error) {
	var children []Node
	switch dataType {
	case jsonparser.Object:
		child, err := parseObject(value, path)
		if err != nil {
			return nil, err
		}
		children = append(children, orMatchAll(child))
	case jsonparser.Array:
		var parseErr error
		i := 0
		_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if parseErr != nil {
				return
			}
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			i++
			if itemType != jsonparser.Object {
				parseErr = errs.Compilef("where", itemPath, errs.ErrInvalidValue, "%s expects objects", op)
				return
			}
			child, err := parseObject(item, itemPath)
			if err != nil {
				parseErr = err
				return
			}
			children = append(children, orMatchAll(child))
		})
		if parseErr != nil {
			return nil, parseErr
		}
		if err != nil {
			return nil, errs.Compilef("where", path, errs.ErrInvalidJSON, "%v", err)
		}
	default:
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%s expects an object or an array", op)
	}

	if len(children) == 0 {
		return nil, nil
	}
	return Logical{Op: op, Children: children}, nil
}

// orMatchAll keeps an empty operand of a connective in place. The empty
// conjunction matches every record, so {"$not": {}} matches none and
// {"$or": [{}, ...]} matches all.
func orMatchAll(child Node) Node {
	if child == nil {
		return Logical{Op: OpAnd}
	}
	return child
}

func parseRelation(label string, data []byte, path string) (Node, error) {
	rel := Relation{Label: label}
	var children []Node

	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		keyPath := joinPath(path, key)

		switch key {
		case keyAlias:
			if dataType != jsonparser.String {
				return errs.Compilef("where", keyPath, errs.ErrMalformedRelation, "$alias must be a string")
			}
			alias, err := jsonparser.ParseString(value)
			if err != nil {
				return errs.Compilef("where", keyPath, errs.ErrInvalidJSON, "%v", err)
			}
			rel.Alias = alias
			return nil
		case keyRelation:
			return parseRelationSpec(&rel, value, dataType, keyPath)
		}

		child, err := parseEntry(key, value, dataType, keyPath)
		if err != nil {
			return err
		}
		if child != nil {
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, asCompileError(err, path)
	}

	switch len(children) {
	case 0:
	case 1:
		rel.Where = children[0]
	default:
		rel.Where = Logical{Op: OpAnd, Children: children}
	}
	return rel, nil
}

// parseRelationSpec reads "$relation": "TYPE" or {"type": "TYPE", "direction": "out"}.
func parseRelationSpec(rel *Relation, value []byte, dataType jsonparser.ValueType, path string) error {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return errs.Compilef("where", path, errs.ErrInvalidJSON, "%v", err)
		}
		rel.Type = s
		return nil
	case jsonparser.Object:
		return jsonparser.ObjectEach(value, func(rawKey, v []byte, vt jsonparser.ValueType, _ int) error {
			key := string(rawKey)
			if vt != jsonparser.String {
				return errs.Compilef("where", joinPath(path, key), errs.ErrMalformedRelation, "%s must be a string", key)
			}
			s, err := jsonparser.ParseString(v)
			if err != nil {
				return errs.Compilef("where", path, errs.ErrInvalidJSON, "%v", err)
			}
			switch key {
			case "type":
				rel.Type = s
			case "direction":
				dir, ok := qb.ParseDirection(s)
				if !ok {
					return errs.Compilef("where", joinPath(path, key), errs.ErrMalformedRelation, "unknown direction %q", s)
				}
				rel.Direction = dir
			default:
				return errs.Compilef("where", joinPath(path, key), errs.ErrMalformedRelation, "unknown key %q", key)
			}
			return nil
		})
	default:
		return errs.Compilef("where", path, errs.ErrMalformedRelation, "$relation must be a string or an object")
	}
}

// isRelationObject reports whether a nested object is a related-record
// filter rather than operators on a property.
func isRelationObject(data []byte) bool {
	empty := true
	relation := false
	_ = jsonparser.ObjectEach(data, func(rawKey, _ []byte, _ jsonparser.ValueType, _ int) error {
		empty = false
		switch string(rawKey) {
		case keyID, keyAlias, keyRelation:
			relation = true
		}
		return nil
	})
	if empty || relation {
		return true
	}
	return !isPureCondition(data)
}

// isPureCondition reports whether every key of the object is a property
// operator, descending into connectives.
func isPureCondition(data []byte) bool {
	pure := true
	_ = jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		switch {
		case key == keyExists, key == keyType, key == keyVector, key == string(OpEq):
		case isDatePartKey(key):
		case compareOps[key] != "":
		case logicalOps[key] != "":
			if !isPureOperand(value, dataType) {
				pure = false
			}
		default:
			pure = false
		}
		return nil
	})
	return pure
}

func isPureOperand(value []byte, dataType jsonparser.ValueType) bool {
	switch dataType {
	case jsonparser.Object:
		return isPureCondition(value)
	case jsonparser.Array:
		pure := true
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if itemType == jsonparser.Object && !isPureCondition(item) {
				pure = false
			}
		})
		return pure
	default:
		return true
	}
}

func parseValueOrCondition(value []byte, dataType jsonparser.ValueType, path string) (Condition, error) {
	if dataType == jsonparser.Object {
		return parseCondition(value, path)
	}
	v, err := decodeValue(value, dataType)
	if err != nil {
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%v", err)
	}
	return Compare{Op: OpEq, Value: v}, nil
}

// parseCondition reads an operator object applied to one property. Bare
// datetime components are gathered into a single DateParts.
func parseCondition(data []byte, path string) (Condition, error) {
	var conds []Condition
	var parts []DatePart

	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		keyPath := joinPath(path, key)

		if isDatePartKey(key) {
			part, err := parseDatePart(key, value, dataType, keyPath)
			if err != nil {
				return err
			}
			parts = append(parts, part)
			return nil
		}

		cond, err := parseOperator(key, value, dataType, keyPath)
		if err != nil {
			return err
		}
		conds = append(conds, cond)
		return nil
	})
	if err != nil {
		return nil, asCompileError(err, path)
	}

	if len(parts) > 0 {
		conds = append([]Condition{DateParts{Op: OpEq, Parts: parts}}, conds...)
	}

	switch len(conds) {
	case 0:
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "empty operator object")
	case 1:
		return conds[0], nil
	default:
		return CondGroup{Op: OpAnd, Conds: conds}, nil
	}
}

func parseOperator(key string, value []byte, dataType jsonparser.ValueType, path string) (Condition, error) {
	if op, ok := logicalOps[key]; ok {
		return parseConditionGroup(op, value, dataType, path)
	}

	switch key {
	case keyExists:
		if dataType != jsonparser.Boolean {
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "$exists expects a boolean")
		}
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%v", err)
		}
		return Exists{Present: b}, nil
	case keyType:
		if dataType != jsonparser.String {
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "$type expects a string")
		}
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%v", err)
		}
		if _, ok := valueTypeTags[s]; !ok {
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "unknown type %q", s)
		}
		return TypeIs{Type: s}, nil
	case keyVector:
		return parseVector(value, dataType, path)
	}

	op, ok := compareOps[key]
	if !ok && key == string(OpEq) {
		op, ok = OpEq, true
	}
	if !ok {
		return nil, errs.Compilef("where", path, errs.ErrUnknownOperator, "%s", key)
	}

	if dataType == jsonparser.Object {
		switch op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			parts, err := parseDateParts(value, path)
			if err != nil {
				return nil, err
			}
			return DateParts{Op: op, Parts: parts}, nil
		default:
			return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%s does not accept an object", key)
		}
	}

	v, err := decodeValue(value, dataType)
	if err != nil {
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%v", err)
	}
	if (op == OpIn || op == OpNin) && dataType != jsonparser.Array {
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "%s expects an array", key)
	}
	return Compare{Op: op, Value: v}, nil
}

func parseConditionGroup(op LogicalOp, value []byte, dataType jsonparser.ValueType, path string) (Condition, error) {
	var conds []Condition
	switch dataType {
	case jsonparser.Array:
		var parseErr error
		i := 0
		_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if parseErr != nil {
				return
			}
			cond, err := parseValueOrCondition(item, itemType, fmt.Sprintf("%s[%d]", path, i))
			i++
			if err != nil {
				parseErr = err
				return
			}
			conds = append(conds, cond)
		})
		if parseErr != nil {
			return nil, parseErr
		}
		if err != nil {
			return nil, errs.Compilef("where", path, errs.ErrInvalidJSON, "%v", err)
		}
	default:
		cond, err := parseValueOrCondition(value, dataType, path)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return CondGroup{Op: op, Conds: conds}, nil
}

func parseDateParts(data []byte, path string) ([]DatePart, error) {
	var parts []DatePart
	err := jsonparser.ObjectEach(data, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		if !isDatePartKey(key) {
			return errs.Compilef("where", joinPath(path, key), errs.ErrUnknownOperator, "%s", key)
		}
		part, err := parseDatePart(key, value, dataType, joinPath(path, key))
		if err != nil {
			return err
		}
		parts = append(parts, part)
		return nil
	})
	if err != nil {
		return nil, asCompileError(err, path)
	}
	if len(parts) == 0 {
		return nil, errs.Compilef("where", path, errs.ErrInvalidValue, "empty datetime object")
	}
	return parts, nil
}

func parseDatePart(key string, value []byte, dataType jsonparser.ValueType, path string) (DatePart, error) {
	if dataType != jsonparser.Number {
		return DatePart{}, errs.Compilef("where", path, errs.ErrInvalidValue, "%s expects an integer", key)
	}
	n, err := jsonparser.ParseInt(value)
	if err != nil {
		return DatePart{}, errs.Compilef("where", path, errs.ErrInvalidValue, "%s expects an integer", key)
	}
	return DatePart{Unit: key[1:], Value: n}, nil
}

func parseVector(value []byte, dataType jsonparser.ValueType, path string) (Condition, error) {
	if dataType != jsonparser.Object {
		return nil, errs.Compilef("where", path, errs.ErrMalformedVector, "expected an object")
	}

	var v Vector
	var hasFn, hasQuery, hasThreshold bool
	err := jsonparser.ObjectEach(value, func(rawKey, item []byte, itemType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		switch key {
		case "fn":
			s, err := jsonparser.ParseString(item)
			if err != nil || itemType != jsonparser.String {
				return errs.Compilef("where", path, errs.ErrMalformedVector, "fn must be a string")
			}
			v.Fn, hasFn = s, true
		case "query":
			q, err := parseFloatArray(item, itemType)
			if err != nil {
				return errs.Compilef("where", path, errs.ErrMalformedVector, "query: %v", err)
			}
			v.Query, hasQuery = q, len(q) > 0
		case "threshold":
			op, t, err := parseThreshold(item, itemType)
			if err != nil {
				return errs.Compilef("where", path, errs.ErrMalformedVector, "threshold: %v", err)
			}
			v.Op, v.Threshold, hasThreshold = op, t, true
		default:
			return errs.Compilef("where", path, errs.ErrMalformedVector, "unknown key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, asCompileError(err, path)
	}

	switch {
	case !hasFn:
		return nil, errs.Compilef("where", path, errs.ErrMalformedVector, "fn is required")
	case !hasQuery:
		return nil, errs.Compilef("where", path, errs.ErrMalformedVector, "query must be a non-empty number array")
	case !hasThreshold:
		return nil, errs.Compilef("where", path, errs.ErrMalformedVector, "threshold is required")
	}
	if _, ok := LookupVectorFunction(v.Fn); !ok {
		return nil, errs.Compilef("where", path, errs.ErrMalformedVector, "unknown function %q", v.Fn)
	}
	return v, nil
}

func parseThreshold(value []byte, dataType jsonparser.ValueType) (Operator, float64, error) {
	switch dataType {
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		return "", f, err
	case jsonparser.Object:
		var op Operator
		var threshold float64
		count := 0
		err := jsonparser.ObjectEach(value, func(rawKey, item []byte, itemType jsonparser.ValueType, _ int) error {
			count++
			key := string(rawKey)
			switch Operator(key) {
			case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			default:
				return fmt.Errorf("unsupported operator %s", key)
			}
			if itemType != jsonparser.Number {
				return fmt.Errorf("%s expects a number", key)
			}
			f, err := jsonparser.ParseFloat(item)
			if err != nil {
				return err
			}
			op, threshold = Operator(key), f
			return nil
		})
		if err != nil {
			return "", 0, err
		}
		if count != 1 {
			return "", 0, fmt.Errorf("expected exactly one operator")
		}
		return op, threshold, nil
	default:
		return "", 0, fmt.Errorf("expected a number or an operator object")
	}
}

func parseFloatArray(value []byte, dataType jsonparser.ValueType) ([]float64, error) {
	if dataType != jsonparser.Array {
		return nil, fmt.Errorf("expected an array")
	}
	var out []float64
	var parseErr error
	_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil {
			return
		}
		if itemType != jsonparser.Number {
			parseErr = fmt.Errorf("expected numbers")
			return
		}
		f, err := jsonparser.ParseFloat(item)
		if err != nil {
			parseErr = err
			return
		}
		out = append(out, f)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, err
}

// decodeValue converts a raw JSON value into the Go value bound as a query
// parameter. Integers stay int64 so the driver sends INTEGER, not FLOAT.
func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		if !bytes.ContainsAny(value, ".eE") {
			if n, err := strconv.ParseInt(string(value), 10, 64); err == nil {
				return n, nil
			}
		}
		return jsonparser.ParseFloat(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Array:
		out := make([]any, 0)
		var decodeErr error
		_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if decodeErr != nil {
				return
			}
			v, err := decodeValue(item, itemType)
			if err != nil {
				decodeErr = err
				return
			}
			out = append(out, v)
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
		return out, err
	case jsonparser.Object:
		out := make(map[string]any)
		err := jsonparser.ObjectEach(value, func(rawKey, item []byte, itemType jsonparser.ValueType, _ int) error {
			v, err := decodeValue(item, itemType)
			if err != nil {
				return err
			}
			out[string(rawKey)] = v
			return nil
		})
		return out, err
	default:
		return nil, fmt.Errorf("unsupported JSON value %q", value)
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// asCompileError keeps classified errors raised inside a jsonparser callback
// and classifies the parser's own failures.
func asCompileError(err error, path string) error {
	if errs.IsCompile(err) {
		return err
	}
	return errs.Compilef("where", path, errs.ErrInvalidJSON, "%v", err)
}
