package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the vector index for a repository",
		Long: `Run a one-shot scan → chunk → embed → persist pass over the
repository (§4.5), without starting the MCP server or watcher.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) > 0 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip Ollama)")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, offline bool) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	logger := slog.Default().With(slog.String("component", "index"))

	d, err := buildDeps(ctx, cfg, offline, logger)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	stats, err := d.indexer.Run(ctx, indexConfig(cfg))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d skipped, %d chunks) in %s\n",
		stats.Indexed, stats.Skipped, stats.TotalChunks, stats.Duration)
	return nil
}
