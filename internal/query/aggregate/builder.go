package aggregate

import (
	"fmt"
	"log/slog"
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/alias"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
)

// Options carries the per-compile state the builder reads.
type Options struct {
	// Registry resolves aliases declared by the filter. Nil means only the
	// root alias is known.
	Registry *alias.Registry
	// Params receives bound values. Nil allocates a fresh set.
	Params *compilectx.Params
	// GroupBy lists aggregate keys or "$alias.field" references. When set,
	// result rows are groups instead of root records.
	GroupBy []string
}

// Plan is the projection part of a search query.
type Plan struct {
	// Stages are WITH clauses, innermost level first. The last one is the
	// root projection; ORDER BY, SKIP and LIMIT attach to it.
	Stages []string
	// Return is the final RETURN clause.
	Return string
	// Keys are the output keys of the root projection, in order.
	Keys []string
	// GroupBy is set when rows are groups.
	GroupBy bool
}

// KeySet returns Keys as a set.
func (p *Plan) KeySet() map[string]bool {
	set := make(map[string]bool, len(p.Keys))
	for _, k := range p.Keys {
		set[k] = true
	}
	return set
}

type resolved struct {
	entry Entry
	node  alias.Node
	field string
	path  string
	child *level
}

// level is one aggregation scope: the root, or the nested map of a collect
// evaluated per collected node (its owner).
type level struct {
	index   int
	owner   string
	parent  *level
	entries []*resolved
}

func (l *level) keys() []string {
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.entry.Key)
	}
	return out
}

type builder struct {
	ctx    compilectx.Context
	reg    *alias.Registry
	keys   map[string]bool
	levels []*level
}

// Build compiles an aggregate map into projection stages.
//
// Levels are compiled innermost first. Each stage keeps visible the ancestor
// chain of its level, every variable still needed by instructions compiled
// later, and the keys already computed whose consuming level has not run
// yet; it then adds its own keys.
//
// Example, for posts collected per person with their comments nested:
//
//	WITH record, record1, apoc.coll.sortMaps(collect(DISTINCT record2 {...}), '__id')[0..100] AS comments
//	WITH record, apoc.coll.sortMaps(collect(DISTINCT record1 {..., comments: comments}), '__id')[0..100] AS posts
//	RETURN collect(DISTINCT record {.*, __label: ..., posts: posts}) AS records
func Build(ctx compilectx.Context, m Map, opts Options) (*Plan, error) {
	if opts.Registry == nil {
		opts.Registry = alias.NewRegistry(ctx)
	}
	if opts.Params == nil {
		opts.Params = ctx.Params()
	}

	b := &builder{
		ctx:  ctx,
		reg:  opts.Registry,
		keys: make(map[string]bool),
	}

	root, err := b.resolveLevel(m, ctx.RootVar, nil, "aggregate")
	if err != nil {
		return nil, err
	}

	grouped := len(opts.GroupBy) > 0
	if grouped {
		if err := b.applyGroupBy(root, opts.GroupBy); err != nil {
			return nil, err
		}
		grouped = len(root.entries) > 0
	}

	r := &renderer{ctx: ctx, params: opts.Params}
	plan := &Plan{GroupBy: grouped, Keys: root.keys()}
	for _, lvl := range b.levels {
		stage, err := b.stage(r, lvl, grouped)
		if err != nil {
			return nil, err
		}
		plan.Stages = append(plan.Stages, stage)
	}

	if grouped {
		lit := qb.NewMapLiteral()
		for _, k := range plan.Keys {
			lit.Add(k, qb.QuoteIdentifier(k))
		}
		plan.Return = "RETURN collect(" + lit.Build() + ") AS records"
	} else {
		projection := ctx.RecordProjection(ctx.RootVar)
		for _, k := range plan.Keys {
			projection.AddExpression(k, qb.QuoteIdentifier(k))
		}
		plan.Return = "RETURN " + projection.BuildCollect(true) + " AS records"
	}
	return plan, nil
}

func (b *builder) resolveLevel(m Map, owner string, parent *level, path string) (*level, error) {
	lvl := &level{owner: owner, parent: parent}

	for _, e := range m {
		keyPath := path + "." + e.Key
		if err := b.claimKey(e.Key, keyPath); err != nil {
			return nil, err
		}
		if e.Instr == nil {
			return nil, errs.Compilef("aggregate", keyPath, errs.ErrUnknownFunction, "missing instruction")
		}

		ref := e.Instr.target()
		node, ok, err := b.resolveAlias(ref.Alias, keyPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var field string
		if ref.Field != "" {
			field = qb.SanitizeIdentifier(ref.Field)
			if field == "" {
				return nil, errs.Compilef("aggregate", keyPath, errs.ErrInvalidIdentifier, "field %q", ref.Field)
			}
		}
		if requiresField(e.Instr) && field == "" {
			return nil, errs.Compilef("aggregate", keyPath, errs.ErrInvalidValue, "field is required")
		}

		res := &resolved{entry: e, node: node, field: field, path: keyPath}
		if c, isCollect := e.Instr.(Collect); isCollect && len(c.Nested) > 0 {
			if field != "" {
				return nil, errs.Compilef("aggregate", keyPath, errs.ErrInvalidValue, "nested aggregate needs a collect without field")
			}
			child, err := b.resolveLevel(c.Nested, node.Var, lvl, keyPath)
			if err != nil {
				return nil, err
			}
			res.child = child
		}
		lvl.entries = append(lvl.entries, res)
	}

	lvl.index = len(b.levels)
	b.levels = append(b.levels, lvl)
	return lvl, nil
}

// claimKey reserves an output key. Keys become query variables, so they must
// be valid identifiers, unique across all levels and distinct from pattern
// variables.
func (b *builder) claimKey(key, path string) error {
	if key == "" || qb.SanitizeIdentifier(key) != key {
		return errs.Compilef("aggregate", path, errs.ErrInvalidIdentifier, "key %q", key)
	}
	if b.keys[key] {
		return errs.Compilef("aggregate", path, errs.ErrDuplicateKey, "%s", key)
	}
	if b.reg.IsVar(key) {
		return errs.Compilef("aggregate", path, errs.ErrDuplicateKey, "%s collides with a pattern variable", key)
	}
	b.keys[key] = true
	return nil
}

// resolveAlias maps an alias to its node. ok is false when a lenient context
// skips an unknown alias.
func (b *builder) resolveAlias(name, path string) (alias.Node, bool, error) {
	if name == "" || b.ctx.IsRootAlias(name) {
		return b.reg.Root(), true, nil
	}
	if node, ok := b.reg.Resolve(name); ok {
		return node, true, nil
	}
	if b.ctx.LenientAliases {
		slog.Warn("Skipping aggregate on unknown alias", "alias", name, "path", path)
		return alias.Node{}, false, nil
	}
	return alias.Node{}, false, errs.Compilef("aggregate", path, errs.ErrUnknownAlias, "%s", name)
}

// applyGroupBy reorders the root entries so grouping keys come first, adding
// a key for every "$alias.field" reference.
func (b *builder) applyGroupBy(root *level, groupBy []string) error {
	var keys []*resolved
	used := make(map[*resolved]bool)

	for i, g := range groupBy {
		path := fmt.Sprintf("groupBy[%d]", i)

		if !strings.HasPrefix(g, "$") {
			var found *resolved
			for _, e := range root.entries {
				if e.entry.Key == g {
					found = e
					break
				}
			}
			if found == nil {
				return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "%q is not an aggregate key", g)
			}
			if found.entry.Instr.aggregating() {
				return errs.Compilef("aggregate", path, errs.ErrInvalidValue, "cannot group by aggregated key %q", g)
			}
			if !used[found] {
				used[found] = true
				keys = append(keys, found)
			}
			continue
		}

		ref := ParseRef(g)
		field := qb.SanitizeIdentifier(ref.Field)
		if field == "" {
			return errs.Compilef("aggregate", path, errs.ErrInvalidIdentifier, "%q", g)
		}
		node, ok, err := b.resolveAlias(ref.Alias, path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := b.claimKey(field, path); err != nil {
			return err
		}
		keys = append(keys, &resolved{
			entry: Entry{Key: field, Instr: Field{Ref: ref}},
			node:  node,
			field: field,
			path:  path,
		})
	}

	for _, e := range root.entries {
		if !used[e] {
			keys = append(keys, e)
		}
	}
	root.entries = keys
	return nil
}

func (b *builder) stage(r *renderer, lvl *level, grouped bool) (string, error) {
	var items []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			items = append(items, name)
		}
	}

	isRoot := lvl.parent == nil
	if !isRoot || !grouped {
		for _, v := range b.reg.Chain(lvl.owner) {
			add(v)
		}
	}
	if !isRoot {
		for _, later := range b.levels[lvl.index+1:] {
			for _, e := range later.entries {
				// Carrying a node below the owner would split the
				// collect into one row per such node.
				if b.reg.Below(e.node.Var, lvl.owner) {
					owner, _ := b.reg.Lookup(lvl.owner)
					return "", errs.Compilef("aggregate", e.path, errs.ErrInvalidValue,
						"%s lies below %s; aggregate it in the nested map of that collect",
						e.entry.Instr.target().Alias, owner.Alias)
				}
				add(e.node.Var)
			}
		}
		for _, earlier := range b.levels[:lvl.index] {
			if earlier.parent != nil && earlier.parent.index > lvl.index {
				for _, k := range earlier.keys() {
					add(qb.QuoteIdentifier(k))
				}
			}
		}
	}

	aggregating := false
	for _, e := range lvl.entries {
		var childKeys []string
		if e.child != nil {
			childKeys = e.child.keys()
		}
		expr, err := r.render(e, childKeys)
		if err != nil {
			return "", err
		}
		if e.entry.Instr.aggregating() {
			aggregating = true
		}
		items = append(items, expr+" AS "+qb.QuoteIdentifier(e.entry.Key))
	}

	if isRoot && !aggregating {
		return "WITH DISTINCT " + strings.Join(items, ", "), nil
	}
	return "WITH " + strings.Join(items, ", "), nil
}

func requiresField(in Instruction) bool {
	switch in.(type) {
	case Field, Reduce, Avg, TimeBucket, VectorScore:
		return true
	default:
		return false
	}
}
