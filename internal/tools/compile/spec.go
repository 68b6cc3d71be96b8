package compile

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

const ToolName = "compile-query"

// Spec returns the MCP tool specification for compile-query
func Spec() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(`Compiles a structured search into a Cypher query and its parameters without running it.

**FILTER (where):**
- {"name": "Ada"} matches records whose name equals "Ada"; several keys are joined with AND
- Operators: $eq $ne $gt $gte $lt $lte $in $nin $contains $startsWith $endsWith $exists $type
- Connectives: $and $or $not $xor $nor
- Dates: {"createdAt": {"$year": 2024, "$month": 5}}
- Vectors: {"embedding": {"$vector": {"fn": "cosine", "query": [0.1, 0.2], "threshold": 0.8}}}
- Related records: a key naming another label, e.g. {"POST": {"$alias": "$post", "$relation": {"type": "AUTHORED", "direction": "out"}, "title": {"$contains": "graph"}}}

**AGGREGATE:**
{"posts": {"fn": "collect", "alias": "$post", "orderBy": {"createdAt": "desc"}, "limit": 5}, "total": {"fn": "count", "alias": "$post"}}

**OUTPUT:**
{"cypher": "...", "params": {...}, "aliases": {"$record": "record", ...}}

Use search-records to run the same request.`),
		mcp.WithInputSchema[tools.SearchInput](),
		mcp.WithTitleAnnotation("Compile Query"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}
