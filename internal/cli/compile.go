package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkd-neo4j/neo4j-query-compiler/internal/query"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Compact bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [request.json]",
		Short: "Compile a search request to Cypher without running it",
		Long: `Reads a JSON search request from the given file, or from stdin when no file
is given, and prints {"cypher", "params", "aliases"}. Nothing is sent to the
database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Compact, "compact", false, "print compact JSON")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	var data []byte
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	req, err := query.ParseRequest(data)
	if err != nil {
		return err
	}
	compiled, err := query.Compile(cfg.CompileContext(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(compiled)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), rootOpts.Version)
		},
	}
}
