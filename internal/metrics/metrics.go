// Package metrics exposes Prometheus collectors for compiles, tool calls and
// bulk relationship runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

var (
	// CompilesTotal counts compile requests by outcome (ok, compile, configuration).
	CompilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compiler_compiles_total",
			Help: "Total number of query compilations",
		},
		[]string{"outcome"},
	)
	// ToolCallsTotal counts MCP tool invocations.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compiler_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool"},
	)
	// BulkBatchesTotal counts bulk batches by executor strategy and outcome.
	BulkBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compiler_bulk_batches_total",
			Help: "Total number of bulk relationship batches",
		},
		[]string{"strategy", "outcome"},
	)
	// BulkRetriesTotal counts batch attempts that were retried.
	BulkRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compiler_bulk_retries_total",
			Help: "Total number of retried bulk batch attempts",
		},
		[]string{"strategy"},
	)
	// BulkRunDuration is the wall time of a bulk run.
	BulkRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_compiler_bulk_run_duration_seconds",
			Help:    "Bulk relationship run latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"strategy", "mutation"},
	)
)

// ObserveCompile records the outcome of one compile.
func ObserveCompile(err error) {
	CompilesTotal.WithLabelValues(Outcome(err)).Inc()
}

// ObserveTool records one tool call.
func ObserveTool(name string) {
	ToolCallsTotal.WithLabelValues(name).Inc()
}

// Outcome maps err to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := errs.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
