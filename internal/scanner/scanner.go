package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semcode/semcode-mcp/internal/gitignore"
)

// gitignoreCacheSize is the maximum number of gitignore matchers to cache.
// Prevents unbounded memory growth in long-running watch sessions.
const gitignoreCacheSize = 1000

// Scanner discovers indexable files in a project directory.
type Scanner struct {
	// gitignoreCache caches parsed gitignore matchers by directory.
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{
		gitignoreCache: cache,
	}, nil
}

// Scan discovers all indexable files in the project directory. It returns a
// channel of ScanResult that streams files as they are discovered; the
// channel is closed when scanning is complete.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan ScanResult, workers*10)

	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, maxFileSize, results)
	}()

	return results, nil
}

// scan performs the actual directory traversal.
func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip files we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.Size() > maxFileSize {
			return nil
		}

		if s.isBinaryFile(path) {
			return nil
		}

		language := DetectLanguage(relPath)
		if language == "" {
			return nil
		}

		if len(opts.IncludePatterns) > 0 && !s.matchesAnyPattern(relPath, opts.IncludePatterns) {
			return nil
		}

		fileInfo := &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Language:    language,
			IsGenerated: s.isGeneratedFile(path),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// shouldExcludeDir checks if a directory should be excluded.
func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// shouldExcludeFile checks if a file should be excluded.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}

	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}

	return false
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, part := range parts {
			if part == suffix {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
			return true
		}
		return false
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	if strings.Contains(pattern, string(filepath.Separator)) && strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "**/") {
		dir := filepath.Dir(pattern)
		filePattern := filepath.Base(pattern)
		relDir := filepath.Dir(relPath)

		if relDir == dir {
			matched, err := filepath.Match(filePattern, baseName)
			if err == nil && matched {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			ext := strings.TrimPrefix(suffix, "*")
			return strings.HasSuffix(baseName, ext)
		}
		parts := strings.Split(relPath, string(filepath.Separator))
		for i, part := range parts {
			if part == suffix || (i < len(parts)-1 && matchDirPattern(strings.Join(parts[:i+1], string(filepath.Separator)), pattern)) {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(baseName, suffix)
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	return baseName == pattern
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (s *Scanner) matchesAnyPattern(relPath string, patterns []string) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range patterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}

// isBinaryFile checks if a file is binary by looking for null bytes.
func (s *Scanner) isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}

	return bytes.Contains(buf[:n], []byte{0})
}

// isGeneratedFile checks if a file is auto-generated.
func (s *Scanner) isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}

	content := string(buf[:n])

	markers := []string{
		"// Code generated",
		"// DO NOT EDIT",
		"/* DO NOT EDIT",
		"# Generated by",
		"<!-- AUTO-GENERATED -->",
		"// Generated by",
		"/* Generated by",
	}

	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}

	return false
}

// isGitignored checks if a file is ignored by gitignore.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	rootMatcher := s.getGitignoreMatcher(absRoot, "")
	if rootMatcher != nil && rootMatcher.Match(relPath, false) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""

	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}

		matcher := s.getGitignoreMatcher(currentDir, currentBase)
		if matcher != nil && matcher.Match(relPath, false) {
			return true
		}
	}

	return false
}

// getGitignoreMatcher gets or creates a gitignore matcher for a directory.
func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil
	}

	matcher = gitignore.New()
	if err := matcher.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()

	return matcher
}

// InvalidateGitignoreCache clears the gitignore matcher cache. Call this
// when .gitignore files change so the watcher picks up fresh patterns.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// Default directories to exclude.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.aws/**",
	"**/.gcp/**",
	"**/.azure/**",
	"**/.ssh/**",
}

// Default files to exclude.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Sensitive file patterns that are never indexed.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
