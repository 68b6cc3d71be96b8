package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
)

// Executor strategies.
const (
	StrategyAPOC  = "apoc"
	StrategyBatch = "batch"
)

// Executor runs a plan. Batches committed before a failure stay committed;
// the returned Result reports them alongside the error.
type Executor interface {
	Execute(ctx context.Context, plan *Plan) (*Result, error)
}

// Result summarizes a run.
type Result struct {
	RunID         string           `json:"runId"`
	Strategy      string           `json:"strategy"`
	Mutation      Mutation         `json:"mutation"`
	Batches       int64            `json:"batches"`
	Total         int64            `json:"total"`
	FailedBatches int64            `json:"failedBatches"`
	ErrorMessages map[string]int64 `json:"errorMessages,omitempty"`
}

// CommittedBatches returns the number of batches that were written.
func (r *Result) CommittedBatches() int64 {
	return r.Batches - r.FailedBatches
}

// NewExecutor returns the executor for strategy.
func NewExecutor(strategy string, db database.Service) (Executor, error) {
	switch strings.ToLower(strategy) {
	case "", StrategyAPOC:
		return &APOCExecutor{DB: db}, nil
	case StrategyBatch:
		return &BatchExecutor{DB: db}, nil
	default:
		return nil, errs.Configuration("bulk", fmt.Errorf("%w: unknown strategy %q", errs.ErrInvalidBatchConfig, strategy))
	}
}

const iterateQuery = `CALL apoc.periodic.iterate($sourceQuery, $actionQuery, {batchSize: $batchSize, parallel: false, retries: $retries, params: $params})
YIELD batches, total, errorMessages, failedBatches
RETURN batches, total, errorMessages, failedBatches`

// APOCExecutor delegates batching and retries to apoc.periodic.iterate.
type APOCExecutor struct {
	DB database.Service
}

// IterateQuery returns the statement and parameters that run plan.
func (e *APOCExecutor) IterateQuery(plan *Plan) (string, map[string]any) {
	return iterateQuery, map[string]any{
		"sourceQuery": plan.SourceQuery,
		"actionQuery": plan.ActionQuery,
		"batchSize":   plan.BatchSize,
		"retries":     plan.Retries,
		"params":      plan.Params,
	}
}

// Execute implements Executor.
func (e *APOCExecutor) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	result := newResult(StrategyAPOC, plan)
	started := time.Now()
	defer observeRun(result, started)

	slog.Info("starting bulk relationship run",
		"runId", result.RunID, "strategy", StrategyAPOC, "mutation", plan.Mutation,
		"type", plan.Type, "batchSize", plan.BatchSize)

	query, params := e.IterateQuery(plan)
	records, err := e.DB.ExecuteWriteQuery(ctx, query, params)
	if err != nil {
		metrics.BulkBatchesTotal.WithLabelValues(StrategyAPOC, "failed").Inc()
		return result, errs.Execution("bulk", fmt.Errorf("run %s: %w", result.RunID, err))
	}
	if len(records) == 0 {
		return result, errs.Execution("bulk", fmt.Errorf("run %s: apoc.periodic.iterate returned no summary", result.RunID))
	}

	summary := records[0].AsMap()
	result.Batches = int64Value(summary["batches"])
	result.Total = int64Value(summary["total"])
	result.FailedBatches = int64Value(summary["failedBatches"])
	if m, ok := summary["errorMessages"].(map[string]any); ok {
		for msg, n := range m {
			result.addError(msg, int64Value(n))
		}
	}

	metrics.BulkBatchesTotal.WithLabelValues(StrategyAPOC, "committed").Add(float64(result.CommittedBatches()))
	metrics.BulkBatchesTotal.WithLabelValues(StrategyAPOC, "failed").Add(float64(result.FailedBatches))

	if result.FailedBatches > 0 {
		slog.Error("bulk relationship run had failed batches",
			"runId", result.RunID, "failedBatches", result.FailedBatches, "errors", result.ErrorMessages)
		return result, errs.Execution("bulk", fmt.Errorf("run %s: %d of %d batches failed: %s",
			result.RunID, result.FailedBatches, result.Batches, result.errorSummary()))
	}

	slog.Info("bulk relationship run completed",
		"runId", result.RunID, "batches", result.Batches, "total", result.Total)
	return result, nil
}

func newResult(strategy string, plan *Plan) *Result {
	return &Result{
		RunID:    uuid.New().String(),
		Strategy: strategy,
		Mutation: plan.Mutation,
	}
}

func (r *Result) addError(msg string, n int64) {
	if r.ErrorMessages == nil {
		r.ErrorMessages = make(map[string]int64)
	}
	r.ErrorMessages[msg] += n
}

func (r *Result) errorSummary() string {
	msgs := make([]string, 0, len(r.ErrorMessages))
	for msg := range r.ErrorMessages {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func observeRun(r *Result, started time.Time) {
	metrics.BulkRunDuration.WithLabelValues(r.Strategy, string(r.Mutation)).Observe(time.Since(started).Seconds())
}

func int64Value(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
