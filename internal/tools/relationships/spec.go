package relationships

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	CreateToolName = "bulk-create-relationships"
	DeleteToolName = "bulk-delete-relationships"
)

// SideInput selects the records on one end of the relationship.
type SideInput struct {
	Label string         `json:"label" jsonschema:"description=Record label of this side (required)"`
	Key   string         `json:"key,omitempty" jsonschema:"description=Property joined with the other side's key. Required on both sides unless manyToMany is set."`
	Where map[string]any `json:"where,omitempty" jsonschema:"description=Filter restricting this side, same language as search-records"`
}

// JoinInput defines the input parameters of the bulk relationship tools
type JoinInput struct {
	Source     SideInput `json:"source" jsonschema:"description=Records the relationships start from"`
	Target     SideInput `json:"target" jsonschema:"description=Records the relationships point to"`
	Type       string    `json:"type,omitempty" jsonschema:"description=Relationship type (default __RELATION__)"`
	Direction  string    `json:"direction,omitempty" jsonschema:"description=out (default), in or both, relative to the source"`
	ManyToMany bool      `json:"manyToMany,omitempty" jsonschema:"description=Connect every matching source to every matching target instead of joining on keys. Both sides then need a non-empty where."`
	BatchSize  int       `json:"batchSize,omitempty" jsonschema:"description=Source records per transaction (default from server configuration)"`
	Retries    *int      `json:"retries,omitempty" jsonschema:"description=Retries per failed batch, 0 for none (default from server configuration)"`
}

const sharedDescription = `

**JOINING:**
- Key join: source.key = target.key, e.g. {"source": {"label": "Person", "key": "companyId"}, "target": {"label": "Company", "key": "id"}, "type": "WORKS_AT"}
- manyToMany: every matching source with every matching target; both sides must carry a where filter, otherwise the request is rejected

**EXECUTION:**
Sources are processed in batches, each in its own transaction with bounded retries. A failing batch stops the run; earlier batches stay committed. The result reports runId, batches, total, failedBatches and errorMessages.

A rejected request (bad filter, missing keys, missing manyToMany filters) writes nothing.`

// CreateSpec returns the MCP tool specification for bulk-create-relationships
func CreateSpec() mcp.Tool {
	return mcp.NewTool(CreateToolName,
		mcp.WithDescription("Creates relationships between two filtered sets of records. Existing relationships of the same type are kept (MERGE)."+sharedDescription),
		mcp.WithInputSchema[JoinInput](),
		mcp.WithTitleAnnotation("Bulk Create Relationships"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// DeleteSpec returns the MCP tool specification for bulk-delete-relationships
func DeleteSpec() mcp.Tool {
	return mcp.NewTool(DeleteToolName,
		mcp.WithDescription("Deletes relationships between two filtered sets of records. Pairs without a relationship are skipped."+sharedDescription),
		mcp.WithInputSchema[JoinInput](),
		mcp.WithTitleAnnotation("Bulk Delete Relationships"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}
