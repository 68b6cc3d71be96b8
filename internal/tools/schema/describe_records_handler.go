package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

const (
	DefaultSampleSize = 1000
	MaxSampleSize     = 100000

	// nodePropertiesQuery retrieves node properties with their types
	nodePropertiesQuery = `
		CALL db.schema.nodeTypeProperties()
		YIELD nodeLabels, propertyName, propertyTypes
		RETURN nodeLabels, propertyName, propertyTypes
	`
)

// relationshipSampleQuery returns the distinct (from, type, to) label
// combinations among the first $sampleSize records.
func relationshipSampleQuery(baseLabel string) string {
	labels := qb.Labels(baseLabel)
	return fmt.Sprintf(`
		MATCH (a%s)
		WITH a LIMIT $sampleSize
		MATCH (a)-[r]->(b%s)
		RETURN DISTINCT
			[l IN labels(a) WHERE l <> $baseLabel] AS fromLabels,
			type(r) AS relType,
			[l IN labels(b) WHERE l <> $baseLabel] AS toLabels
	`, labels, labels)
}

// DescribeRecordsHandler returns a handler function for the describe-records tool
func DescribeRecordsHandler(deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDescribeRecords(ctx, request, deps)
	}
}

func handleDescribeRecords(ctx context.Context, request mcp.CallToolRequest, deps *tools.ToolDependencies) (*mcp.CallToolResult, error) {
	if deps.DBService == nil {
		errMessage := "Database service is not initialized"
		slog.Error(errMessage)
		return mcp.NewToolResultError(errMessage), nil
	}

	metrics.ObserveTool(ToolName)

	var args DescribeRecordsInput
	if err := request.BindArguments(&args); err != nil {
		slog.Error("error binding arguments", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	sampleSize := args.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if sampleSize > MaxSampleSize {
		sampleSize = MaxSampleSize
	}

	baseLabel := deps.Compile.BaseLabel
	slog.Info("describing records", "database", deps.DBService.GetDatabaseName(), "baseLabel", baseLabel)

	propRecords, err := deps.DBService.ExecuteReadQuery(ctx, nodePropertiesQuery, nil)
	if err != nil {
		slog.Error("failed to execute node properties query", "error", err)
		return tools.ErrorResult(ToolName, err), nil
	}

	relRecords, err := deps.DBService.ExecuteReadQuery(ctx, relationshipSampleQuery(baseLabel), map[string]any{
		"sampleSize": sampleSize,
		"baseLabel":  baseLabel,
	})
	if err != nil {
		slog.Error("failed to execute relationship sample query", "error", err)
		return tools.ErrorResult(ToolName, err), nil
	}

	described := describe(baseLabel, propRecords, relRecords)
	if len(described) == 0 {
		slog.Info("no records found", "database", deps.DBService.GetDatabaseName())
		return mcp.NewToolResultText(fmt.Sprintf("The describe-records tool executed successfully; however, the database '%s' contains no records, so no schema information was returned.", deps.DBService.GetDatabaseName())), nil
	}

	markdown := formatAsMarkdown(baseLabel, described)
	slog.Debug("returning record schema", "labels", len(described), "size", len(markdown))
	return mcp.NewToolResultText(markdown), nil
}

// RecordLabel is the shape of one record label.
type RecordLabel struct {
	Label         string
	Properties    map[string]string
	Relationships []RelationshipShape
}

// RelationshipShape is one observed outgoing relationship.
type RelationshipShape struct {
	Type string
	To   string
}

// describe combines property and relationship rows into one entry per
// record label, sorted by label. Nodes without baseLabel are ignored when
// baseLabel is set.
func describe(baseLabel string, propRecords, relRecords []*neo4j.Record) []RecordLabel {
	byLabel := make(map[string]*RecordLabel)
	entry := func(label string) *RecordLabel {
		e, ok := byLabel[label]
		if !ok {
			e = &RecordLabel{Label: label, Properties: make(map[string]string)}
			byLabel[label] = e
		}
		return e
	}

	for _, record := range propRecords {
		nodeLabelsRaw, _ := record.Get("nodeLabels")
		label, ok := recordLabel(baseLabel, nodeLabelsRaw)
		if !ok {
			continue
		}
		e := entry(label)

		propertyName, _ := record.Get("propertyName")
		propertyTypes, _ := record.Get("propertyTypes")
		name, ok := propertyName.(string)
		if !ok || name == "" {
			continue
		}
		if types, ok := propertyTypes.([]any); ok && len(types) > 0 {
			parts := make([]string, 0, len(types))
			for _, t := range types {
				if s, ok := t.(string); ok {
					parts = append(parts, s)
				}
			}
			e.Properties[name] = strings.Join(parts, " | ")
		}
	}

	seen := make(map[string]bool)
	for _, record := range relRecords {
		fromRaw, _ := record.Get("fromLabels")
		toRaw, _ := record.Get("toLabels")
		relTypeRaw, _ := record.Get("relType")

		from, okFrom := joinLabels(fromRaw)
		to, okTo := joinLabels(toRaw)
		relType, okType := relTypeRaw.(string)
		if !okFrom || !okTo || !okType {
			continue
		}
		key := from + "\x00" + relType + "\x00" + to
		if seen[key] {
			continue
		}
		seen[key] = true
		e := entry(from)
		e.Relationships = append(e.Relationships, RelationshipShape{Type: relType, To: to})
	}

	out := make([]RecordLabel, 0, len(byLabel))
	for _, e := range byLabel {
		sort.Slice(e.Relationships, func(i, j int) bool {
			if e.Relationships[i].Type != e.Relationships[j].Type {
				return e.Relationships[i].Type < e.Relationships[j].Type
			}
			return e.Relationships[i].To < e.Relationships[j].To
		})
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// recordLabel returns the caller-facing label of a node label set, i.e. the
// labels other than baseLabel joined with ":".
func recordLabel(baseLabel string, raw any) (string, bool) {
	list, ok := raw.([]any)
	if !ok {
		return "", false
	}
	hasBase := baseLabel == ""
	labels := make([]string, 0, len(list))
	for _, l := range list {
		s, ok := l.(string)
		if !ok {
			continue
		}
		if s == baseLabel {
			hasBase = true
			continue
		}
		labels = append(labels, s)
	}
	if !hasBase || len(labels) == 0 {
		return "", false
	}
	sort.Strings(labels)
	return strings.Join(labels, ":"), true
}

func joinLabels(raw any) (string, bool) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(list))
	for _, l := range list {
		if s, ok := l.(string); ok {
			labels = append(labels, s)
		}
	}
	sort.Strings(labels)
	return strings.Join(labels, ":"), len(labels) > 0
}

// formatAsMarkdown renders the described labels as a markdown document
func formatAsMarkdown(baseLabel string, labels []RecordLabel) string {
	var md strings.Builder

	md.WriteString("# Record Schema\n\n")
	if baseLabel != "" {
		md.WriteString(fmt.Sprintf("Every record carries the `%s` label; it is added to searches automatically and omitted below.\n\n", baseLabel))
	}

	for _, l := range labels {
		md.WriteString(fmt.Sprintf("## %s\n\n", l.Label))

		if len(l.Properties) > 0 {
			names := make([]string, 0, len(l.Properties))
			for name := range l.Properties {
				names = append(names, name)
			}
			sort.Strings(names)

			md.WriteString("*Properties:*\n\n")
			for _, name := range names {
				md.WriteString(fmt.Sprintf("  - `%s` (%s)\n", name, l.Properties[name]))
			}
			md.WriteString("\n")
		}

		if len(l.Relationships) > 0 {
			md.WriteString("*Relationships:*\n\n")
			for _, r := range l.Relationships {
				md.WriteString(fmt.Sprintf("  - `(:%s)-[:%s]->(:%s)`\n", l.Label, r.Type, r.To))
			}
			md.WriteString("\n")
		}
	}

	return md.String()
}
