package database

//go:generate mockgen -destination=mocks/mock_database.go -package=database_mocks github.com/mkd-neo4j/neo4j-query-compiler/internal/database Service
import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Service runs compiled queries against the graph.
type Service interface {
	// VerifyConnectivity checks that the database is reachable.
	VerifyConnectivity(ctx context.Context) error

	// ExecuteReadQuery runs a query routed to readers.
	ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

	// ExecuteWriteQuery runs a query routed to the writer, in its own transaction.
	ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

	// Neo4jRecordsToJSON converts records to a JSON array of row objects.
	Neo4jRecordsToJSON(records []*neo4j.Record) (string, error)

	// GetDatabaseName returns the database queries are sent to.
	GetDatabaseName() string
}
