package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/database"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/metrics"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/server"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/tools/dynamic"
	"github.com/mkd-neo4j/neo4j-query-compiler/tools"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ReadOnly    bool
	MetricsAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Long: `Connects to Neo4j and serves the query tools over MCP on stdin/stdout.

Connection and compiler settings come from the config file and the NEO4J_*,
QUERY_*, LOG_*, METRICS_ADDR and PRESETS_DIR environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ReadOnly, "read-only", false, "hide tools that write to the graph")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("read-only") {
		cfg.ReadOnly = opts.ReadOnly
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if err := setupLogging(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := database.NewDriver(cfg.URI, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			slog.Error("error closing driver", "error", err)
		}
	}()

	dbService, err := database.NewNeo4jService(driver, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database service: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	dynamic.EmbeddedFS = tools.ConfigFiles

	mcpServer, err := server.New(cfg, dbService, opts.Version)
	if err != nil {
		return err
	}
	return mcpServer.Start(ctx)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
