package tools

import (
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/bulk"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
)

// ToolDependencies contains all dependencies needed by tools
type ToolDependencies struct {
	DBService database.Service
	// Compile holds the compiler settings (base label, scope, lenient
	// aliases) applied to every request.
	Compile compilectx.Context
	// Executor runs bulk relationship plans.
	Executor bulk.Executor
	// BulkBatchSize and BulkRetries apply when a bulk call leaves them unset.
	BulkBatchSize int
	BulkRetries   int
}
