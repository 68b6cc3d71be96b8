package schema

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const ToolName = "describe-records"

// DescribeRecordsInput defines the input parameters of describe-records
type DescribeRecordsInput struct {
	SampleSize int `json:"sampleSize,omitempty" jsonschema:"description=Records sampled when discovering relationships (default 1000)"`
}

func DescribeRecordsSpec() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(`
		Describe the records that search-records and the bulk tools operate on.

		Returns, per record label:
		- Properties with their data types, usable as filter keys and aggregate fields
		- Relationships to other record labels, usable as related-label filters

		Call this before writing a filter when the labels or property names are unknown.
		If the database holds no records, no schema information is returned.`),
		mcp.WithInputSchema[DescribeRecordsInput](),
		mcp.WithTitleAnnotation("Describe Records"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}
