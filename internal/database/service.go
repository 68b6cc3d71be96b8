package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

// Neo4jService implements Service on top of the neo4j driver.
type Neo4jService struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewDriver opens a driver with basic authentication. The caller owns it and
// must close it.
func NewDriver(uri, username, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return driver, nil
}

// NewNeo4jService wraps driver. An empty database name uses the server default.
func NewNeo4jService(driver neo4j.DriverWithContext, database string) (*Neo4jService, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver is required")
	}
	return &Neo4jService{driver: driver, database: database}, nil
}

// VerifyConnectivity implements Service.
func (s *Neo4jService) VerifyConnectivity(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify database connectivity: %w", err)
	}
	return nil
}

// ExecuteReadQuery implements Service.
func (s *Neo4jService) ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		slog.Debug("read query failed", "error", err, "query", cypher)
		return nil, errs.Execution("read", fmt.Errorf("failed to execute read query: %w", err))
	}
	return res.Records, nil
}

// ExecuteWriteQuery implements Service.
func (s *Neo4jService) ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithWritersRouting(),
	)
	if err != nil {
		slog.Debug("write query failed", "error", err, "query", cypher)
		return nil, errs.Execution("write", fmt.Errorf("failed to execute write query: %w", err))
	}
	return res.Records, nil
}

// Neo4jRecordsToJSON implements Service.
func (s *Neo4jService) Neo4jRecordsToJSON(records []*neo4j.Record) (string, error) {
	return RecordsToJSON(records)
}

// GetDatabaseName implements Service.
func (s *Neo4jService) GetDatabaseName() string {
	if s.database == "" {
		return "neo4j"
	}
	return s.database
}
