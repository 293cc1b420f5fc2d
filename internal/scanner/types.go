// Package scanner discovers indexable source files in a project directory,
// respecting exclusion patterns, .gitignore rules, and sensitive file
// patterns. It answers only "which files" — chunking and hashing happen
// downstream in internal/index.
package scanner

import (
	"time"

	"github.com/semcode/semcode-mcp/internal/chunk"
)

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path        string    // Relative path to project root
	AbsPath     string    // Absolute path
	Size        int64     // File size in bytes
	ModTime     time.Time // Last modification time
	Language    string    // go, typescript, python, javascript, rust, or "" if unrecognized
	IsGenerated bool      // Detected as generated file
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the project root directory to scan.
	RootDir string

	// IncludePatterns specifies patterns to include (empty = all).
	IncludePatterns []string

	// ExcludePatterns specifies patterns to exclude, in addition to
	// ignore_patterns resolved from .semcode.yaml/.gitignore.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing.
	RespectGitignore bool

	// Workers is the number of concurrent workers (0 = NumCPU).
	Workers int

	// MaxFileSize is the maximum file size to include in bytes (0 = 1MiB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool

	// ProgressFunc is called with progress updates during scanning.
	ProgressFunc func(scanned, total int)
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (1MiB, per §4.5's
// max_file_size skip threshold).
const DefaultMaxFileSize = 1 * 1024 * 1024

// DetectLanguage detects the chunk-supported language from a file path by
// extension, using the same registry the chunker resolves grammars from so
// the two never drift out of sync. Returns "" for files the chunker has no
// tree-sitter grammar for.
func DetectLanguage(path string) string {
	ext := extension(path)
	if ext == "" {
		return ""
	}
	if _, config, ok := chunk.DefaultRegistry().ResolveExtension(ext); ok {
		return config.Name
	}
	return ""
}

// extension returns the file extension from a path (including the dot).
func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
