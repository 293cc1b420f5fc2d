package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/semcode/semcode-mcp/internal/chunk"
	"github.com/semcode/semcode-mcp/internal/config"
	"github.com/semcode/semcode-mcp/internal/embed"
	"github.com/semcode/semcode-mcp/internal/index"
	"github.com/semcode/semcode-mcp/internal/scanner"
	"github.com/semcode/semcode-mcp/internal/store"
)

// deps bundles the collaborators every command builds config → store →
// scanner/chunker/embedder → indexer from (§4.5/§4.7 wiring).
type deps struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	indexer  *index.Indexer
	embedder embed.Embedder
}

// buildDeps constructs the shared collaborator graph. offline forces the
// deterministic static embedder (skips the Ollama network dependency).
func buildDeps(ctx context.Context, cfg *config.Config, offline bool, logger *slog.Logger) (*deps, error) {
	emb, err := embed.New(ctx, embed.FactoryConfig{
		Offline: offline,
		Ollama: embed.OllamaConfig{
			Host:           cfg.Embeddings.OllamaHost,
			Model:          cfg.Embeddings.Model,
			FallbackModels: embed.FallbackOllamaModels,
			BatchSize:      cfg.Embeddings.BatchSize,
			Timeout:        embed.DefaultTimeout,
			ConnectTimeout: embed.OllamaConnectTimeout,
			MaxRetries:     embed.DefaultMaxRetries,
			PoolSize:       embed.OllamaPoolSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct embedder: %w", err)
	}

	st, err := store.Open(cfg.Paths.IndexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sc, err := scanner.New()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to construct scanner: %w", err)
	}

	ck := chunk.NewCodeChunkerWithRegistry(chunk.DefaultRegistry(), logger)

	ix := index.New(sc, ck, emb, st, logger)

	return &deps{cfg: cfg, store: st, indexer: ix, embedder: emb}, nil
}

// indexConfig derives an index.Config for a Run/watch cycle from cfg.
func indexConfig(cfg *config.Config) *index.Config {
	ignore := append([]string(nil), index.DefaultIgnorePatterns...)
	ignore = append(ignore, cfg.Paths.Exclude...)
	return &index.Config{
		Root:              cfg.Paths.Root,
		IgnorePatterns:    ignore,
		MaxFileSize:       cfg.Performance.MaxFileSize,
		BatchSize:         cfg.Performance.BatchSize,
		MaxChunksInMemory: cfg.Performance.MaxChunksInMemory,
	}
}

func (d *deps) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
