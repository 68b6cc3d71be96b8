package relationships

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/bulk"
	qb "github.com/mkd-neo4j/neo4j-query-compiler/internal/query/query_builder"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/where"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

// CreateHandler returns the tool handler function for bulk-create-relationships
func CreateHandler(deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleBulk(ctx, request, deps, CreateToolName, bulk.Create)
	}
}

// DeleteHandler returns the tool handler function for bulk-delete-relationships
func DeleteHandler(deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleBulk(ctx, request, deps, DeleteToolName, bulk.Delete)
	}
}

func handleBulk(ctx context.Context, request mcp.CallToolRequest, deps *tools.ToolDependencies, tool string, mutation bulk.Mutation) (*mcp.CallToolResult, error) {
	if deps.Executor == nil {
		errMessage := "Bulk executor is not initialized"
		slog.Error(errMessage)
		return mcp.NewToolResultError(errMessage), nil
	}

	metrics.ObserveTool(tool)

	var args JoinInput
	if err := request.BindArguments(&args); err != nil {
		slog.Error("error binding arguments", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	spec, err := joinSpec(args, deps)
	if err != nil {
		return tools.ErrorResult(tool, err), nil
	}

	plan, err := bulk.NewPlan(deps.Compile, spec, mutation)
	metrics.ObserveCompile(err)
	if err != nil {
		return tools.ErrorResult(tool, err), nil
	}

	slog.Info("running bulk relationship mutation",
		"tool", tool, "source", spec.Source.Label, "target", spec.Target.Label,
		"type", plan.Type, "manyToMany", spec.ManyToMany)

	result, err := deps.Executor.Execute(ctx, plan)
	if err != nil {
		res := tools.ErrorResult(tool, err)
		if result != nil {
			if summary, mErr := json.MarshalIndent(result, "", "  "); mErr == nil {
				res.Content = append(res.Content, mcp.NewTextContent(string(summary)))
			}
		}
		return res, nil
	}

	return tools.JSONResult(tool, result), nil
}

// joinSpec converts tool arguments into a bulk.JoinSpec, filling batch
// settings from the server configuration.
func joinSpec(args JoinInput, deps *tools.ToolDependencies) (bulk.JoinSpec, error) {
	source, err := where.FromMap(args.Source.Where)
	if err != nil {
		return bulk.JoinSpec{}, err
	}
	target, err := where.FromMap(args.Target.Where)
	if err != nil {
		return bulk.JoinSpec{}, err
	}

	var direction qb.Direction
	if args.Direction != "" {
		d, ok := qb.ParseDirection(args.Direction)
		if !ok {
			return bulk.JoinSpec{}, errs.Compilef("bulk", "direction", errs.ErrInvalidValue, "%q is not out, in or both", args.Direction)
		}
		direction = d
	}

	batchSize := args.BatchSize
	if batchSize == 0 {
		batchSize = deps.BulkBatchSize
	}
	retries := deps.BulkRetries
	if args.Retries != nil {
		retries = *args.Retries
	}

	return bulk.JoinSpec{
		Source:     bulk.Side{Label: args.Source.Label, Key: args.Source.Key, Filter: source},
		Target:     bulk.Side{Label: args.Target.Label, Key: args.Target.Key, Filter: target},
		Type:       args.Type,
		Direction:  direction,
		ManyToMany: args.ManyToMany,
		BatchSize:  batchSize,
		Retries:    &retries,
	}, nil
}
