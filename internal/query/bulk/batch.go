package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
)

// BatchExecutor runs a plan without apoc: it pages source ids in element id
// order and applies the action to each page in its own write transaction,
// retrying a failed page up to plan.Retries times. The run stops at the
// first page that exhausts its retries.
type BatchExecutor struct {
	DB database.Service
	// NewBackOff builds the retry schedule of one page. Nil uses an
	// exponential backoff.
	NewBackOff func() backoff.BackOff
}

// Execute implements Executor.
func (e *BatchExecutor) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	result := newResult(StrategyBatch, plan)
	started := time.Now()
	defer observeRun(result, started)

	slog.Info("starting bulk relationship run",
		"runId", result.RunID, "strategy", StrategyBatch, "mutation", plan.Mutation,
		"type", plan.Type, "batchSize", plan.BatchSize)

	keyset := plan.KeysetQuery()
	chunk := plan.ChunkQuery()
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return result, errs.Execution("bulk", fmt.Errorf("run %s cancelled after %d batches: %w", result.RunID, result.Batches, err))
		}

		ids, err := e.nextIDs(ctx, plan, keyset, cursor)
		if err != nil {
			return result, errs.Execution("bulk", fmt.Errorf("run %s: failed to scan sources: %w", result.RunID, err))
		}
		if len(ids) == 0 {
			break
		}

		result.Batches++
		affected, err := e.runChunk(ctx, plan, chunk, ids, result)
		if err != nil {
			result.FailedBatches++
			result.addError(err.Error(), 1)
			metrics.BulkBatchesTotal.WithLabelValues(StrategyBatch, "failed").Inc()
			slog.Error("bulk batch failed", "runId", result.RunID, "batch", result.Batches, "error", err)
			return result, errs.Execution("bulk", fmt.Errorf("run %s: batch %d failed after %d retries (%d batches committed): %w",
				result.RunID, result.Batches, plan.Retries, result.CommittedBatches(), err))
		}

		result.Total += int64(len(ids))
		metrics.BulkBatchesTotal.WithLabelValues(StrategyBatch, "committed").Inc()
		slog.Debug("bulk batch committed", "runId", result.RunID, "batch", result.Batches,
			"sources", len(ids), "affected", affected)

		cursor = ids[len(ids)-1]
		if len(ids) < plan.BatchSize {
			break
		}
	}

	slog.Info("bulk relationship run completed",
		"runId", result.RunID, "batches", result.Batches, "total", result.Total)
	return result, nil
}

func (e *BatchExecutor) nextIDs(ctx context.Context, plan *Plan, keyset, cursor string) ([]string, error) {
	params := make(map[string]any, len(plan.Params)+2)
	for k, v := range plan.Params {
		params[k] = v
	}
	params["cursor"] = cursor
	params["batchSize"] = plan.BatchSize

	records, err := e.DB.ExecuteReadQuery(ctx, keyset, params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		v, ok := r.Get("id")
		if !ok {
			return nil, fmt.Errorf("scan row without id")
		}
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("scan row id is %T, not a string", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *BatchExecutor) runChunk(ctx context.Context, plan *Plan, chunk string, ids []string, result *Result) (int64, error) {
	params := make(map[string]any, len(plan.Params)+1)
	for k, v := range plan.Params {
		params[k] = v
	}
	params["ids"] = ids

	var affected int64
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.BulkRetriesTotal.WithLabelValues(StrategyBatch).Inc()
			slog.Warn("retrying bulk batch", "runId", result.RunID, "batch", result.Batches, "attempt", attempt)
		}
		records, err := e.DB.ExecuteWriteQuery(ctx, chunk, params)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			if v, ok := records[0].Get("affected"); ok {
				affected = int64Value(v)
			}
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(e.backOff(), uint64(plan.Retries)), ctx)); err != nil {
		return 0, err
	}
	return affected, nil
}

func (e *BatchExecutor) backOff() backoff.BackOff {
	if e.NewBackOff != nil {
		return e.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
