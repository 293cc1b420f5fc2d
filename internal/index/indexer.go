package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/semcode/semcode-mcp/internal/chunk"
	"github.com/semcode/semcode-mcp/internal/embed"
	"github.com/semcode/semcode-mcp/internal/errs"
	"github.com/semcode/semcode-mcp/internal/scanner"
	"github.com/semcode/semcode-mcp/internal/store"
)

// Indexer walks a project tree and keeps a store.Store's chunk records in
// sync with the files on disk (§4.5).
type Indexer struct {
	scanner  *scanner.Scanner
	chunker  chunk.Chunker
	embedder embed.Embedder
	store    store.Store
	logger   *slog.Logger
}

// New builds an Indexer from its collaborators. logger may be nil, in which
// case slog.Default() is used.
func New(sc *scanner.Scanner, ck chunk.Chunker, emb embed.Embedder, st store.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{scanner: sc, chunker: ck, embedder: emb, store: st, logger: logger}
}

// fileTask is a file discovered by the scan walk, deduplicated by path.
type fileTask struct {
	info *scanner.FileInfo
}

// Run executes the full scan → hash → chunk → embed → persist pipeline
// described in §4.5 and returns the resulting Stats.
func (ix *Indexer) Run(ctx context.Context, cfg *Config) (*Stats, error) {
	start := time.Now()
	cfg = cfg.withDefaults()

	tasks, err := ix.walk(ctx, cfg)
	if err != nil {
		return nil, err
	}

	snapshot, err := ix.store.GetIndexedFiles(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalFiles: len(tasks)}
	var pending []*store.Record

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := ix.store.Upsert(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for batchStart := 0; batchStart < len(tasks); batchStart += cfg.BatchSize {
		batchEnd := batchStart + cfg.BatchSize
		if batchEnd > len(tasks) {
			batchEnd = len(tasks)
		}

		for _, task := range tasks[batchStart:batchEnd] {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			records, changed, skipped, err := ix.processFile(ctx, task.info, cfg, snapshot)
			if err != nil {
				ix.logger.Warn("skipping file after error",
					slog.String("path", task.info.Path), slog.String("error", err.Error()))
				stats.Skipped++
				continue
			}
			if skipped {
				stats.Skipped++
				continue
			}
			if changed {
				// Delete the file's old records before queuing its new ones so a
				// mid-walk flush (triggered by MaxChunksInMemory below) can never
				// persist the replacement rows and then have this delete remove
				// them again by file_path.
				if err := ix.store.DeleteByFilePath(ctx, task.info.Path); err != nil {
					return nil, err
				}
			}

			stats.Indexed++
			stats.TotalChunks += len(records)
			pending = append(pending, records...)

			if len(pending) >= cfg.MaxChunksInMemory {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}

		if cfg.OnProgress != nil {
			cfg.OnProgress(batchEnd, len(tasks))
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// ReindexFile re-indexes a single file in response to a filesystem change
// (§4.6). It follows the same chunk → embed → upsert sequence as Run, but
// skips the hash-equality shortcut: the caller (a watcher) already knows the
// file changed, so the old records are deleted unconditionally before the
// new ones are written.
func (ix *Indexer) ReindexFile(ctx context.Context, root, relPath string) error {
	if err := ix.store.DeleteByFilePath(ctx, relPath); err != nil {
		return err
	}

	info, err := os.Stat(filepath.Join(root, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.IoFailure("failed to stat file", err).WithDetail("path", relPath)
	}
	if info.IsDir() {
		return nil
	}

	language := scanner.DetectLanguage(relPath)
	if language == "" {
		return nil
	}

	fi := &scanner.FileInfo{
		Path:     relPath,
		AbsPath:  filepath.Join(root, relPath),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Language: language,
	}

	records, _, skipped, err := ix.processFile(ctx, fi, (&Config{}).withDefaults(), nil)
	if err != nil {
		return err
	}
	if skipped || len(records) == 0 {
		return nil
	}

	return ix.store.Upsert(ctx, records)
}

// DeleteFile removes a file's records from the store without re-indexing
// it, used when a watched file is deleted (§4.6).
func (ix *Indexer) DeleteFile(ctx context.Context, relPath string) error {
	return ix.store.DeleteByFilePath(ctx, relPath)
}

// walk scans root and deduplicates discovered files by relative path.
func (ix *Indexer) walk(ctx context.Context, cfg *Config) ([]fileTask, error) {
	results, err := ix.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          cfg.Root,
		ExcludePatterns:  cfg.IgnorePatterns,
		RespectGitignore: true,
		// The size limit is applied by processFile, so that oversized files
		// are counted in Stats.Skipped instead of vanishing from the walk.
		MaxFileSize: math.MaxInt64,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var tasks []fileTask
	for res := range results {
		if res.Error != nil {
			ix.logger.Warn("scan error", slog.String("error", res.Error.Error()))
			continue
		}
		if seen[res.File.Path] {
			continue
		}
		seen[res.File.Path] = true
		tasks = append(tasks, fileTask{info: res.File})
	}
	return tasks, nil
}

// processFile reads, hashes, chunks, and embeds a single file. changed
// reports whether a prior version of this file must be deleted before its
// new records are queued; skipped reports a size-based skip (not an error).
func (ix *Indexer) processFile(ctx context.Context, info *scanner.FileInfo, cfg *Config, snapshot map[string]string) (records []*store.Record, changed bool, skipped bool, err error) {
	if info.Size == 0 || info.Size > cfg.MaxFileSize {
		return nil, false, true, nil
	}

	content, err := os.ReadFile(info.AbsPath)
	if err != nil {
		return nil, false, false, errs.IoFailure("failed to read file", err).WithDetail("path", info.Path)
	}

	sum := md5.Sum(content)
	contentHash := hex.EncodeToString(sum[:])

	if prevHash, ok := snapshot[info.Path]; ok {
		if prevHash == contentHash {
			return nil, false, false, nil
		}
		changed = true
	}

	chunks, err := ix.chunker.Chunk(ctx, &chunk.FileInput{
		Path:     info.Path,
		Content:  content,
		Language: info.Language,
	})
	if err != nil {
		return nil, false, false, errs.ParseFailure("failed to chunk file", err).WithDetail("path", info.Path)
	}
	if len(chunks) == 0 {
		return nil, changed, false, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	batch, err := ix.embedder.EmbedBatch(ctx, texts, embed.DefaultBatchSize)
	if err != nil {
		return nil, false, false, errs.EmbeddingGeneration("failed to embed chunks", err).WithDetail("path", info.Path)
	}

	now := time.Now()
	records = make([]*store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = &store.Record{
			ID:          c.ID,
			FilePath:    c.FilePath,
			Content:     c.Content,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Name:        c.Name,
			NodeType:    c.NodeType,
			Signature:   c.Signature,
			Docstring:   c.Docstring,
			Language:    c.Language,
			Vector:      batch.Results[i].Vector,
			ContentHash: contentHash,
			IndexedAt:   now,
		}
	}

	return records, changed, false, nil
}
