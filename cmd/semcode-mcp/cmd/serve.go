package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semcode/semcode-mcp/internal/config"
	"github.com/semcode/semcode-mcp/internal/index"
	"github.com/semcode/semcode-mcp/internal/logging"
	"github.com/semcode/semcode-mcp/internal/mcp"
	"github.com/semcode/semcode-mcp/internal/search"
	"github.com/semcode/semcode-mcp/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Start the semantic_search MCP server over stdio",
		Long: `Start the MCP server. It registers a single semantic_search tool
and serves requests over stdio until the process is terminated.

The store is opened at startup; the index is built lazily: if the store
is empty, the first search request triggers a full index build before
answering (§5 lazy initialization).
A background watcher keeps the index in sync with on-disk changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) > 0 {
				root = args[0]
			}
			return runServe(cmd.Context(), root, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip Ollama)")
	return cmd
}

func runServe(parent context.Context, root string, offline bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// BUG-034: the MCP stdio transport reserves stdout exclusively for
	// JSON-RPC; serve always uses the file-only MCP-safe logging setup
	// rather than the generic one other commands use.
	level := "info"
	if debugMode {
		level = "debug"
	}
	loggingCleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer loggingCleanup()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	logger := slog.Default().With(slog.String("component", "serve"))

	d, err := buildDeps(ctx, cfg, offline, logger)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	orc := search.New(d.store, d.embedder, nil, cfg.Paths.Root, logger)
	idxCfg := indexConfig(cfg)
	srv := mcp.New(orc, d.store, d.indexer, idxCfg, logger)

	w, err := startWatcher(ctx, cfg, d.indexer, logger)
	if err != nil {
		logger.Warn("watcher not started", slog.String("error", err.Error()))
	} else {
		defer func() { _ = w.Stop() }()
	}

	logger.Info("semcode-mcp starting", slog.String("root", cfg.Paths.Root))
	return srv.Serve(ctx)
}

// startWatcher constructs and starts the filesystem watcher, wiring its
// debounced events into the indexer's incremental re-index/delete
// operations (§4.6).
func startWatcher(ctx context.Context, cfg *config.Config, ix *index.Indexer, logger *slog.Logger) (watcher.Watcher, error) {
	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  cfg.Performance.WatchDebounce,
		IgnorePatterns:  append(append([]string(nil), index.DefaultIgnorePatterns...), cfg.Paths.Exclude...),
		EventBufferSize: 1000,
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx, cfg.Paths.Root); err != nil {
		return nil, err
	}

	go watchLoop(ctx, w, ix, cfg.Paths.Root, logger)

	return w, nil
}

func watchLoop(ctx context.Context, w watcher.Watcher, ix *index.Indexer, root string, logger *slog.Logger) {
	events := w.Events()
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			handleWatchEvent(ctx, ix, root, evt, logger)
		case werr, ok := <-errs:
			if !ok {
				continue
			}
			logger.Warn("watcher error", slog.String("error", werr.Error()))
		}
	}
}

func handleWatchEvent(ctx context.Context, ix *index.Indexer, root string, evt watcher.FileEvent, logger *slog.Logger) {
	var err error
	switch evt.Operation {
	case watcher.OpDelete:
		err = ix.DeleteFile(ctx, evt.Path)
	default:
		err = ix.ReindexFile(ctx, root, evt.Path)
	}
	if err != nil {
		logger.Warn("incremental reindex failed",
			slog.String("path", evt.Path), slog.String("op", evt.Operation.String()), slog.String("error", err.Error()))
	}
}
