package server

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/bulk"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/compile"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/dynamic"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/relationships"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/schema"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/search"
)

// registerTools registers all enabled MCP tools and adds them to the provided MCP server.
// Tools are filtered according to the server configuration. When read-only mode is enabled
// (NEO4J_READ_ONLY or Config.ReadOnly), only tools marked readonly are registered, so the
// bulk relationship tools disappear.
func (s *Neo4jMCPServer) registerTools() error {
	filteredTools, err := s.getEnabledTools()
	if err != nil {
		return err
	}
	s.MCPServer.AddTools(filteredTools...)
	return nil
}

type toolFilter func(tools []ToolDefinition) []ToolDefinition

type toolCategory int

const (
	queryCategory   toolCategory = 0 // compile and search
	bulkCategory    toolCategory = 1 // relationship mutations
	schemaCategory  toolCategory = 2
	dynamicCategory toolCategory = 3 // Saved searches from YAML
)

type ToolDefinition struct {
	category   toolCategory
	definition server.ServerTool
	readonly   bool
}

func (s *Neo4jMCPServer) getEnabledTools() ([]server.ServerTool, error) {
	filters := make([]toolFilter, 0)

	// If read-only mode is enabled, expose only tools annotated as read-only.
	if s.config != nil && s.config.ReadOnly {
		filters = append(filters, filterWriteTools)
	}

	deps, err := s.toolDependencies()
	if err != nil {
		return nil, err
	}
	toolDefs := s.getAllToolsDefs(deps)

	for _, filter := range filters {
		toolDefs = filter(toolDefs)
	}
	enabledTools := make([]server.ServerTool, 0, len(toolDefs))
	for _, toolDef := range toolDefs {
		enabledTools = append(enabledTools, toolDef.definition)
	}
	return enabledTools, nil
}

// toolDependencies builds the shared handler dependencies from the configuration
func (s *Neo4jMCPServer) toolDependencies() (*tools.ToolDependencies, error) {
	executor, err := bulk.NewExecutor(s.config.BulkStrategy, s.dbService)
	if err != nil {
		return nil, fmt.Errorf("invalid bulk strategy: %w", err)
	}
	return &tools.ToolDependencies{
		DBService:     s.dbService,
		Compile:       s.config.CompileContext(),
		Executor:      executor,
		BulkBatchSize: s.config.BulkBatchSize,
		BulkRetries:   s.config.BulkRetries,
	}, nil
}

func filterWriteTools(tools []ToolDefinition) []ToolDefinition {
	readOnlyTools := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if t.readonly {
			readOnlyTools = append(readOnlyTools, t)
		}
	}
	return readOnlyTools
}

// getAllToolsDefs returns all available tools with their specs and handlers
func (s *Neo4jMCPServer) getAllToolsDefs(deps *tools.ToolDependencies) []ToolDefinition {
	toolDefs := []ToolDefinition{
		{
			category: schemaCategory,
			definition: server.ServerTool{
				Tool:    schema.DescribeRecordsSpec(),
				Handler: schema.DescribeRecordsHandler(deps),
			},
			readonly: true,
		},
		{
			category: queryCategory,
			definition: server.ServerTool{
				Tool:    compile.Spec(),
				Handler: compile.Handler(deps),
			},
			readonly: true,
		},
		{
			category: queryCategory,
			definition: server.ServerTool{
				Tool:    search.Spec(),
				Handler: search.Handler(deps),
			},
			readonly: true,
		},
		{
			category: bulkCategory,
			definition: server.ServerTool{
				Tool:    relationships.CreateSpec(),
				Handler: relationships.CreateHandler(deps),
			},
			readonly: false,
		},
		{
			category: bulkCategory,
			definition: server.ServerTool{
				Tool:    relationships.DeleteSpec(),
				Handler: relationships.DeleteHandler(deps),
			},
			readonly: false,
		},
	}

	// Load saved searches from the presets directory
	dynamicTools := s.loadDynamicTools(deps)
	toolDefs = append(toolDefs, dynamicTools...)

	return toolDefs
}

// loadDynamicTools loads saved searches from YAML presets
func (s *Neo4jMCPServer) loadDynamicTools(deps *tools.ToolDependencies) []ToolDefinition {
	presetsDir := "tools/config"
	if s.config != nil && s.config.PresetsDir != "" {
		presetsDir = s.config.PresetsDir
	}
	registry := dynamic.NewToolRegistry(presetsDir)

	if err := registry.LoadTools(); err != nil {
		slog.Error("failed to load saved searches", "error", err)
		return []ToolDefinition{}
	}

	if registry.GetToolCount() == 0 {
		slog.Info("no saved searches found", "dir", presetsDir)
		return []ToolDefinition{}
	}

	slog.Info("loaded saved searches", "count", registry.GetToolCount(), "categories", registry.ListCategories())

	serverTools := registry.GetServerTools(deps)
	toolDefs := make([]ToolDefinition, 0, len(serverTools))

	for _, serverTool := range serverTools {
		// Saved searches only read
		toolDefs = append(toolDefs, ToolDefinition{
			category:   dynamicCategory,
			definition: serverTool,
			readonly:   true,
		})
	}

	return toolDefs
}
