// Package cmd provides the CLI commands for semcode-mcp.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/semcode/semcode-mcp/internal/config"
	"github.com/semcode/semcode-mcp/internal/logging"
	"github.com/semcode/semcode-mcp/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the semcode-mcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semcode-mcp",
		Short: "Local semantic code search MCP server",
		Long: `semcode-mcp indexes a code repository into chunk-level vector
embeddings and exposes a single semantic_search MCP tool over stdio for
AI coding assistants.

Run 'semcode-mcp serve' in a project directory to start the server. The
first search against an empty index triggers a full build automatically.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("semcode-mcp version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.semcode-mcp/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// startLogging initializes logging for every command except serve, which
// manages its own MCP-safe logging setup (stdout must carry only JSON-RPC).
func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" {
		return nil
	}
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the project root (positional arg wins, then
// SEMANTIC_CODE_ROOT, then cwd) and loads its layered configuration.
func loadConfig(positionalRoot string) (*config.Config, error) {
	root, err := config.ResolveRoot(positionalRoot)
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}
