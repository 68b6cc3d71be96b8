// Package compilectx carries the values every compiler stage needs to agree
// on: the reserved root alias, the storage keys for identity and label, the
// base label shared by all records, the default relationship type, the
// caller-supplied scope, and the parameter allocator of one compile call.
//
// A Context is a plain value. Stages receive it explicitly instead of reading
// package-level constants, so two compiles with different settings can run
// side by side.
package compilectx

import (
	"fmt"
	"sort"
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
)

const (
	DefaultRootAlias    = "$record"
	DefaultRootVar      = "record"
	DefaultIdentityKey  = "__id"
	DefaultLabelKey     = "__label"
	DefaultBaseLabel    = "__RECORD__"
	DefaultRelationType = "__RELATION__"
	DefaultParamPrefix  = "p"
	scopeParamPrefix    = "scope"
)

// ScopeEntry is one caller-injected constraint applied to every node pattern.
type ScopeEntry struct {
	Key   string
	Value any
}

// Context holds the sentinel values of one compile.
type Context struct {
	// RootAlias is the caller-facing alias of the root node (e.g. "$record").
	RootAlias string
	// RootVar is the pattern variable bound to the root node.
	RootVar string
	// IdentityKey is the property holding a record's identifier.
	IdentityKey string
	// LabelKey is the key under which projections expose the record label.
	LabelKey string
	// BaseLabel is carried by every record node. Empty disables it.
	BaseLabel string
	// DefaultRelationType is used by bulk plans when no type is given.
	DefaultRelationType string
	// EmptyMarker is stripped from scalar collect results.
	EmptyMarker any
	// Scope is injected into every node pattern as bound properties.
	Scope []ScopeEntry
	// LenientAliases drops aggregate/order entries that reference an unknown
	// alias instead of failing the compile.
	LenientAliases bool
	// ParamPrefix names generated value parameters ($p0, $p1, ...).
	ParamPrefix string
}

// Default returns the context used when the caller does not override anything.
func Default() Context {
	return Context{
		RootAlias:           DefaultRootAlias,
		RootVar:             DefaultRootVar,
		IdentityKey:         DefaultIdentityKey,
		LabelKey:            DefaultLabelKey,
		BaseLabel:           DefaultBaseLabel,
		DefaultRelationType: DefaultRelationType,
		EmptyMarker:         "",
		ParamPrefix:         DefaultParamPrefix,
	}
}

// WithScope returns a copy of c whose scope is built from m, ordered by key.
func (c Context) WithScope(m map[string]any) Context {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scope := make([]ScopeEntry, 0, len(keys))
	for _, k := range keys {
		scope = append(scope, ScopeEntry{Key: k, Value: m[k]})
	}
	c.Scope = scope
	return c
}

// WithRoot returns a copy of c whose root node is bound to varName. The bulk
// planner compiles source and target filters this way.
func (c Context) WithRoot(alias, varName string) Context {
	c.RootAlias = NormalizeAlias(alias)
	c.RootVar = varName
	return c
}

// WithParamPrefix returns a copy of c generating parameters named prefix0, prefix1, ...
func (c Context) WithParamPrefix(prefix string) Context {
	c.ParamPrefix = prefix
	return c
}

// Validate checks that every identifier the context contributes to query text
// survives sanitization unchanged.
func (c Context) Validate() error {
	if !qb.IsPlainIdentifier(c.RootVar) {
		return errs.Compilef("context", "rootVar", errs.ErrInvalidIdentifier, "%q", c.RootVar)
	}
	if !qb.IsPlainIdentifier(c.ParamPrefix) {
		return errs.Compilef("context", "paramPrefix", errs.ErrInvalidIdentifier, "%q", c.ParamPrefix)
	}
	checks := []struct {
		path     string
		value    string
		optional bool
	}{
		{"identityKey", c.IdentityKey, false},
		{"labelKey", c.LabelKey, false},
		{"baseLabel", c.BaseLabel, true},
		{"defaultRelationType", c.DefaultRelationType, false},
	}
	for _, check := range checks {
		if check.optional && check.value == "" {
			continue
		}
		if qb.SanitizeIdentifier(check.value) != check.value || check.value == "" {
			return errs.Compilef("context", check.path, errs.ErrInvalidIdentifier, "%q", check.value)
		}
	}
	for i, entry := range c.Scope {
		if qb.SanitizeIdentifier(entry.Key) != entry.Key || entry.Key == "" {
			return errs.Compilef("context", fmt.Sprintf("scope[%d]", i), errs.ErrInvalidIdentifier, "%q", entry.Key)
		}
	}
	return nil
}

// NormalizeAlias returns alias with exactly one leading "$".
func NormalizeAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return ""
	}
	return "$" + strings.TrimLeft(alias, "$")
}

// IsRootAlias reports whether alias names the root node.
func (c Context) IsRootAlias(alias string) bool {
	return NormalizeAlias(alias) == NormalizeAlias(c.RootAlias)
}

// NodePattern returns the pattern of a record node: base label, the given
// label (already sanitized, may be empty) and the scope bindings.
func (c Context) NodePattern(varName string, labels []string, params *Params) qb.NodePattern {
	all := make([]string, 0, len(labels)+1)
	if c.BaseLabel != "" {
		all = append(all, c.BaseLabel)
	}
	all = append(all, labels...)

	return qb.NodePattern{
		Var:    varName,
		Labels: all,
		Props:  c.ScopeBindings(params),
	}
}

// ScopeBindings binds every scope value under a fixed parameter name, so all
// patterns of one query share the same parameters.
func (c Context) ScopeBindings(params *Params) []qb.PropertyBinding {
	if len(c.Scope) == 0 {
		return nil
	}
	bindings := make([]qb.PropertyBinding, 0, len(c.Scope))
	for i, entry := range c.Scope {
		name := fmt.Sprintf("%s%d", scopeParamPrefix, i)
		params.Set(name, entry.Value)
		bindings = append(bindings, qb.PropertyBinding{Key: entry.Key, Param: name})
	}
	return bindings
}

// LabelExpr returns the expression yielding the user label of a record node.
func (c Context) LabelExpr(varName string) string {
	if c.BaseLabel == "" {
		return fmt.Sprintf("labels(%s)[0]", varName)
	}
	return fmt.Sprintf("[l IN labels(%s) WHERE l <> %s][0]", varName, qb.StringLiteral(c.BaseLabel))
}

// RecordProjection returns the map projection of a whole record: every stored
// property (identity and metadata included) plus the label.
func (c Context) RecordProjection(varName string) *qb.MapProjection {
	return qb.NewMapProjection(varName).
		AllProperties().
		AddExpression(c.LabelKey, c.LabelExpr(varName))
}

// IdentityProperty renders the identity key access on varName.
func (c Context) IdentityProperty(varName string) string {
	return qb.Property(varName, c.IdentityKey)
}
