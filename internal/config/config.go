// Package config loads the server and compiler settings from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/bulk"
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query/compilectx"
)

// Config holds the settings of one process.
type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// ReadOnly hides every tool that writes to the graph.
	ReadOnly bool `yaml:"readOnly"`

	// BaseLabel is carried by every record node. Empty disables it.
	BaseLabel      string         `yaml:"baseLabel"`
	LenientAliases bool           `yaml:"lenientAliases"`
	Scope          map[string]any `yaml:"scope,omitempty"`

	BulkStrategy  string `yaml:"bulkStrategy"`
	BulkBatchSize int    `yaml:"bulkBatchSize"`
	BulkRetries   int    `yaml:"bulkRetries"`

	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	MetricsAddr string `yaml:"metricsAddr"`
	// PresetsDir is read when no saved searches are embedded in the binary.
	PresetsDir string `yaml:"presetsDir"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		URI:           "bolt://localhost:7687",
		Username:      "neo4j",
		Password:      "password",
		Database:      "neo4j",
		BaseLabel:     compilectx.DefaultBaseLabel,
		BulkStrategy:  bulk.StrategyAPOC,
		BulkBatchSize: bulk.DefaultBatchSize,
		BulkRetries:   bulk.DefaultRetries,
		LogLevel:      "info",
		LogFormat:     "text",
		PresetsDir:    "tools/config",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if val := os.Getenv("NEO4J_URI"); val != "" {
		c.URI = val
	}
	if val := os.Getenv("NEO4J_USERNAME"); val != "" {
		c.Username = val
	}
	if val := os.Getenv("NEO4J_PASSWORD"); val != "" {
		c.Password = val
	}
	if val := os.Getenv("NEO4J_DATABASE"); val != "" {
		c.Database = val
	}
	if val := os.Getenv("QUERY_BASE_LABEL"); val != "" {
		c.BaseLabel = val
	}
	if val := os.Getenv("QUERY_BULK_STRATEGY"); val != "" {
		c.BulkStrategy = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}
	if val := os.Getenv("METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}
	if val := os.Getenv("PRESETS_DIR"); val != "" {
		c.PresetsDir = val
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"NEO4J_READ_ONLY", &c.ReadOnly},
		{"QUERY_LENIENT_ALIASES", &c.LenientAliases},
	}
	for _, b := range bools {
		val := os.Getenv(b.env)
		if val == "" {
			continue
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", b.env, val, err)
		}
		*b.dst = parsed
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"QUERY_BULK_BATCH_SIZE", &c.BulkBatchSize},
		{"QUERY_BULK_RETRIES", &c.BulkRetries},
	}
	for _, i := range ints {
		val := os.Getenv(i.env)
		if val == "" {
			continue
		}
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.env, val, err)
		}
		*i.dst = parsed
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("neo4j uri is required")
	}
	switch c.BulkStrategy {
	case bulk.StrategyAPOC, bulk.StrategyBatch:
	default:
		return fmt.Errorf("bulk strategy must be %q or %q, got %q", bulk.StrategyAPOC, bulk.StrategyBatch, c.BulkStrategy)
	}
	if c.BulkBatchSize < 1 || c.BulkBatchSize > bulk.MaxBatchSize {
		return fmt.Errorf("bulk batch size must be in 1..%d, got %d", bulk.MaxBatchSize, c.BulkBatchSize)
	}
	if c.BulkRetries < 0 || c.BulkRetries > bulk.MaxRetries {
		return fmt.Errorf("bulk retries must be in 0..%d, got %d", bulk.MaxRetries, c.BulkRetries)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return c.CompileContext().Validate()
}

// CompileContext returns the compiler settings derived from c.
func (c *Config) CompileContext() compilectx.Context {
	ctx := compilectx.Default()
	ctx.BaseLabel = c.BaseLabel
	ctx.LenientAliases = c.LenientAliases
	if len(c.Scope) > 0 {
		ctx = ctx.WithScope(c.Scope)
	}
	return ctx
}

// ParseLogLevel maps debug, info, warn and error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
