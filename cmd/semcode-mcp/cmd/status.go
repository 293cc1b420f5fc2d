package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/semcode/semcode-mcp/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Print index statistics for a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) > 0 {
				root = args[0]
			}
			return runStatus(cmd, root)
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, root string) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Paths.IndexPath, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "root:       %s\n", cfg.Paths.Root)
	fmt.Fprintf(cmd.OutOrStdout(), "index path: %s\n", cfg.Paths.IndexPath)
	fmt.Fprintf(cmd.OutOrStdout(), "records:    %d\n", stats.RecordCount)
	fmt.Fprintf(cmd.OutOrStdout(), "dimensions: %d\n", stats.Dimensions)
	return nil
}
