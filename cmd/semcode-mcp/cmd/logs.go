package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semcode/semcode-mcp/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		pattern string
		noColor bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View semcode-mcp server logs",
		Long: `View and tail the semcode-mcp server log (~/.semcode-mcp/logs/server.log).

By default, shows the last 50 lines. Use -f to follow new entries in
real-time (like 'tail -f').`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, logsOptions{
				follow:  follow,
				lines:   lines,
				level:   level,
				pattern: pattern,
				noColor: noColor,
				logFile: logFile,
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&pattern, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file (overrides the default location)")

	return cmd
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	pattern string
	noColor bool
	logFile string
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.pattern != "" {
		pattern, err = regexp.Compile(opts.pattern)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, out)

	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "---")

	if opts.follow {
		return followLog(cmd.Context(), viewer, out, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func followLog(parent context.Context, viewer *logging.Viewer, out io.Writer, path string) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(out, viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
