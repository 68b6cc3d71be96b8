package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/config"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
)

const serverName = "neo4j-query-compiler"

// Neo4jMCPServer exposes the query compiler as MCP tools.
type Neo4jMCPServer struct {
	MCPServer *server.MCPServer
	config    *config.Config
	dbService database.Service
	version   string
}

// New creates the MCP server and registers every enabled tool.
func New(cfg *config.Config, dbService database.Service, version string) (*Neo4jMCPServer, error) {
	mcpServer := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Search records with a JSON filter language compiled to Cypher, and create or delete relationships between filtered record sets in batches. Call describe-records first when labels or properties are unknown."),
	)

	s := &Neo4jMCPServer{
		MCPServer: mcpServer,
		config:    cfg,
		dbService: dbService,
		version:   version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Start verifies the database connection and serves MCP over stdio until
// the input stream closes.
func (s *Neo4jMCPServer) Start(ctx context.Context) error {
	if err := s.dbService.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify database connectivity: %w", err)
	}

	slog.Info("starting MCP server", "name", serverName, "version", s.version,
		"database", s.dbService.GetDatabaseName(), "readOnly", s.config.ReadOnly)

	return server.ServeStdio(s.MCPServer)
}
