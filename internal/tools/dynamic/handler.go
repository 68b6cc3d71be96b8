package dynamic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/search"
)

// NewSearchHandler creates a handler function for a saved search
func NewSearchHandler(config *SearchConfig, deps *tools.ToolDependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSavedSearch(ctx, request, config, deps)
	}
}

func handleSavedSearch(ctx context.Context, request mcp.CallToolRequest, config *SearchConfig, deps *tools.ToolDependencies) (*mcp.CallToolResult, error) {
	if deps.DBService == nil {
		errMessage := "Database service is not initialized"
		slog.Error(errMessage)
		return mcp.NewToolResultError(errMessage), nil
	}

	metrics.ObserveTool(config.Name)
	slog.Info("saved search called", "tool", config.Name, "category", config.Category)

	req, err := config.Request(request.GetArguments())
	if err != nil {
		return tools.ErrorResult(config.Name, err), nil
	}
	req.Skip = request.GetInt("skip", 0)
	req.Limit = request.GetInt("limit", config.Limit)

	return search.Run(ctx, deps, config.Name, req)
}

// Request renders the saved search with args substituted for its
// placeholders. Missing or mistyped arguments are compile errors.
func (c *SearchConfig) Request(args map[string]any) (query.SearchRequest, error) {
	values, err := c.resolve(args)
	if err != nil {
		return query.SearchRequest{}, err
	}

	req := query.SearchRequest{
		Labels:  c.Labels,
		GroupBy: c.GroupBy,
		Limit:   c.Limit,
	}
	if req.Where, err = renderJSON(&c.Where, values); err != nil {
		return query.SearchRequest{}, errs.Compilef(c.Name, "where", errs.ErrInvalidValue, "%v", err)
	}
	if req.Aggregate, err = renderJSON(&c.Aggregate, values); err != nil {
		return query.SearchRequest{}, errs.Compilef(c.Name, "aggregate", errs.ErrInvalidValue, "%v", err)
	}
	if req.OrderBy, err = renderJSON(&c.OrderBy, values); err != nil {
		return query.SearchRequest{}, errs.Compilef(c.Name, "orderBy", errs.ErrInvalidValue, "%v", err)
	}
	return req, nil
}

func (c *SearchConfig) resolve(args map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(c.Parameters))
	for _, p := range c.Parameters {
		v, ok := args[p.Name]
		if !ok || v == nil {
			switch {
			case p.Default != nil:
				v = p.Default
			case p.Required:
				return nil, errs.Compilef(c.Name, p.Name, errs.ErrInvalidValue, "parameter is required")
			default:
				continue
			}
		}

		coerced, err := coerce(p.Type, v)
		if err != nil {
			return nil, errs.Compilef(c.Name, p.Name, errs.ErrInvalidValue, "%v", err)
		}
		values[p.Name] = coerced
	}
	return values, nil
}

// coerce checks v against a JSON Schema type. Integers arrive as float64
// from JSON and as int from YAML defaults; both become int64.
func coerce(typ string, v any) (any, error) {
	switch typ {
	case "":
		return v, nil
	case "string":
		if s, ok := v.(string); ok {
			return s, nil
		}
	case "boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case "integer":
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int64(n), nil
			}
		}
	case "number":
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case "array":
		if a, ok := v.([]any); ok {
			return a, nil
		}
	case "object":
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", typ, v)
}

// buildEnrichedDescription creates a comprehensive description from all semantic fields
func buildEnrichedDescription(config *SearchConfig) string {
	var sb strings.Builder

	sb.WriteString(config.Description)

	if config.Intent != "" {
		sb.WriteString("\n\n## Intent\n")
		sb.WriteString(config.Intent)
	}

	// Show the stored search with placeholders left in place
	templates := make(map[string]any, len(config.Parameters))
	for _, p := range config.Parameters {
		templates[p.Name] = "{{" + p.Name + "}}"
	}
	sb.WriteString("\n\n## Search\n")
	if len(config.Labels) > 0 {
		sb.WriteString(fmt.Sprintf("- Labels: %v\n", config.Labels))
	}
	for _, part := range []struct {
		name string
		node *yaml.Node
	}{
		{"Where", &config.Where},
		{"Aggregate", &config.Aggregate},
		{"OrderBy", &config.OrderBy},
	} {
		raw, err := renderJSON(part.node, templates)
		if err != nil || raw == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: `%s`\n", part.name, raw))
	}
	if len(config.GroupBy) > 0 {
		sb.WriteString(fmt.Sprintf("- GroupBy: %v\n", config.GroupBy))
	}
	if config.Limit > 0 {
		sb.WriteString(fmt.Sprintf("- Default limit: %d\n", config.Limit))
	}

	if len(config.Parameters) > 0 {
		sb.WriteString("\n## Parameters\n")
		for _, p := range config.Parameters {
			sb.WriteString(fmt.Sprintf("- `%s` (%s)", p.Name, p.Type))
			if p.Required {
				sb.WriteString(" required")
			}
			if p.Default != nil {
				sb.WriteString(fmt.Sprintf(" [default: %v]", p.Default))
			}
			if p.Description != "" {
				sb.WriteString(fmt.Sprintf(": %s", p.Description))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
