package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD", "NEO4J_DATABASE", "NEO4J_READ_ONLY",
		"QUERY_BASE_LABEL", "QUERY_LENIENT_ALIASES", "QUERY_BULK_STRATEGY",
		"QUERY_BULK_BATCH_SIZE", "QUERY_BULK_RETRIES",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR", "PRESETS_DIR",
	} {
		t.Setenv(key, "")
	}
	logger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(logger) })
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand("1.2.3")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type compiledOutput struct {
	Cypher  string            `json:"cypher"`
	Params  map[string]any    `json:"params"`
	Aliases map[string]string `json:"aliases"`
}

func TestCompileCommand_Stdin(t *testing.T) {
	clearEnv(t)

	out, _, err := run(t, `{"labels": ["Person"], "where": {"name": "Ada"}, "limit": 5}`, "compile")
	require.NoError(t, err)

	var compiled compiledOutput
	require.NoError(t, json.Unmarshal([]byte(out), &compiled))
	assert.Contains(t, compiled.Cypher, "MATCH (record:__RECORD__:Person)\nWHERE record.name = $p0")
	assert.Equal(t, "Ada", compiled.Params["p0"])
	assert.Equal(t, float64(5), compiled.Params["limit"])
}

func TestCompileCommand_FileAndConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	reqPath := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(`{"labels": ["Person"]}`), 0o600))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("baseLabel: Entity\n"), 0o600))

	out, _, err := run(t, "", "compile", "--config", cfgPath, "--compact", reqPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(record:Entity:Person)")
	assert.Equal(t, 1, strings.Count(out, "\n"), "compact output is one line")
}

func TestCompileCommand_Rejection(t *testing.T) {
	clearEnv(t)

	out, _, err := run(t, `{"where": {"age": {"$foo": 1}}}`, "compile")
	require.Error(t, err)
	assert.True(t, errs.IsCompile(err))
	assert.ErrorIs(t, err, errs.ErrUnknownOperator)
	assert.Empty(t, out)
}

func TestCompileCommand_MalformedJSON(t *testing.T) {
	clearEnv(t)

	_, _, err := run(t, `{"labels": `, "compile")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidJSON)
}

func TestCompileCommand_InvalidConfig(t *testing.T) {
	clearEnv(t)

	_, _, err := run(t, `{}`, "compile", "--log-level", "loud")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	clearEnv(t)

	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestSetupLogging_JSON(t *testing.T) {
	clearEnv(t)

	buf := &bytes.Buffer{}
	cfg, err := (&RootOptions{LogFormat: "json", LogLevel: "warn"}).loadConfig()
	require.NoError(t, err)
	require.NoError(t, setupLogging(cfg, buf))

	slog.Info("hidden")
	slog.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "value", line["key"])
}

func TestMetricsMux(t *testing.T) {
	mux := metricsMux()
	_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "/metrics", pattern)
}
