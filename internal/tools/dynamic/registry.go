package dynamic

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
)

// ToolRegistry manages the loading and registration of saved searches
type ToolRegistry struct {
	configDir string
	configs   []*SearchConfig
}

// NewToolRegistry creates a new tool registry
func NewToolRegistry(configDir string) *ToolRegistry {
	return &ToolRegistry{
		configDir: configDir,
		configs:   make([]*SearchConfig, 0),
	}
}

// LoadTools loads all saved searches from the config directory
func (r *ToolRegistry) LoadTools() error {
	configs, err := WalkConfigDirectory(r.configDir)
	if err != nil {
		return fmt.Errorf("failed to load saved searches: %w", err)
	}

	r.configs = configs
	slog.Info("loaded saved searches", "count", len(configs), "configDir", r.configDir)

	return nil
}

// GetToolCount returns the number of loaded tools
func (r *ToolRegistry) GetToolCount() int {
	return len(r.configs)
}

// GetServerTools converts all loaded configs into MCP server tools
func (r *ToolRegistry) GetServerTools(deps *tools.ToolDependencies) []server.ServerTool {
	serverTools := make([]server.ServerTool, 0, len(r.configs))

	for _, config := range r.configs {
		tool := r.buildServerTool(config, deps)
		serverTools = append(serverTools, tool)
	}

	return serverTools
}

// buildServerTool creates an MCP server tool from a saved search
func (r *ToolRegistry) buildServerTool(config *SearchConfig, deps *tools.ToolDependencies) server.ServerTool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(buildEnrichedDescription(config)),
		mcp.WithTitleAnnotation(config.Name),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	}
	for _, p := range config.Parameters {
		opts = append(opts, parameterOption(p))
	}
	opts = append(opts,
		mcp.WithNumber("skip", mcp.Description("Records to skip (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Records to return, 1 to 1000")),
	)

	slog.Debug("built saved search tool", "name", config.Name, "category", config.Category)

	return server.ServerTool{
		Tool:    mcp.NewTool(config.Name, opts...),
		Handler: NewSearchHandler(config, deps),
	}
}

// parameterOption declares p in the tool input schema
func parameterOption(p ParameterConfig) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(p.Description)}
	if p.Required {
		props = append(props, mcp.Required())
	}

	switch p.Type {
	case "integer", "number":
		if n, ok := p.Default.(int); ok {
			props = append(props, mcp.DefaultNumber(float64(n)))
		} else if f, ok := p.Default.(float64); ok {
			props = append(props, mcp.DefaultNumber(f))
		}
		return mcp.WithNumber(p.Name, props...)
	case "boolean":
		if b, ok := p.Default.(bool); ok {
			props = append(props, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(p.Name, props...)
	case "array":
		return mcp.WithArray(p.Name, props...)
	case "object":
		return mcp.WithObject(p.Name, props...)
	default:
		if s, ok := p.Default.(string); ok {
			props = append(props, mcp.DefaultString(s))
		}
		return mcp.WithString(p.Name, props...)
	}
}

// ListCategories returns all unique categories
func (r *ToolRegistry) ListCategories() []string {
	categoryMap := make(map[string]bool)
	for _, config := range r.configs {
		categoryMap[config.Category] = true
	}

	categories := make([]string, 0, len(categoryMap))
	for category := range categoryMap {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return categories
}
