// Package index walks a project tree, detects changed files by content
// hash, chunks and embeds them, and persists the result to a store.Store
// (§4.5).
package index

import (
	"time"
)

// DefaultMaxFileSize is the per-file size ceiling above which a file is
// skipped rather than indexed.
const DefaultMaxFileSize = 1 * 1024 * 1024

// DefaultBatchSize is the number of files processed per walk batch.
const DefaultBatchSize = 10

// DefaultMaxChunksInMemory bounds the pending-record buffer before a flush.
const DefaultMaxChunksInMemory = 500

// DefaultIgnorePatterns are excluded from every scan unless overridden (§6).
var DefaultIgnorePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/.next/**",
	"**/coverage/**",
	"**/__pycache__/**",
	"**/venv/**",
	"**/.venv/**",
	"**/target/**",
	"**/vendor/**",
	"**/*.min.js",
	"**/*.bundle.js",
	"**/*.map",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/.semantic-code/**",
}

// ProgressFunc reports incremental walk progress; filesDone/filesTotal are
// best-effort (filesTotal may be 0 before the walk finishes enumerating).
type ProgressFunc func(filesDone, filesTotal int)

// Config configures a single Run.
type Config struct {
	Root              string
	IgnorePatterns    []string
	MaxFileSize       int64
	BatchSize         int
	MaxChunksInMemory int
	OnProgress        ProgressFunc
}

// Stats summarizes a completed indexing run (§4.5 step 5).
type Stats struct {
	TotalFiles  int
	Indexed     int
	Skipped     int
	TotalChunks int
	Duration    time.Duration
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxChunksInMemory <= 0 {
		cfg.MaxChunksInMemory = DefaultMaxChunksInMemory
	}
	if cfg.IgnorePatterns == nil {
		cfg.IgnorePatterns = DefaultIgnorePatterns
	}
	return &cfg
}
