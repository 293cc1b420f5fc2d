// Package config loads the layered configuration this module's CLI and
// MCP server are wired from: hardcoded defaults, an optional project
// `.semcode.yaml`, then environment variable overrides (§6 "Environment"
// plus the ambient config layer SPEC_FULL.md adds around it).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType is the detected kind of project rooted at a directory.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeRust    ProjectType = "rust"
	ProjectTypeUnknown ProjectType = "unknown"
)

// defaultIndexDirName is the subdirectory SEMANTIC_CODE_INDEX defaults to
// under the repository root (§6).
const defaultIndexDirName = ".semantic-code/index"

// Config is the full layered configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// PathsConfig configures which paths the Indexer/Watcher scan.
type PathsConfig struct {
	// Root is the repository root to index (SEMANTIC_CODE_ROOT, §6).
	Root string `yaml:"-" json:"root"`
	// IndexPath is where the vector store persists (SEMANTIC_CODE_INDEX, §6).
	IndexPath string `yaml:"-" json:"index_path"`
	// Exclude lists additional ignore patterns layered on top of §6's
	// default ignore set.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures the search orchestrator's defaults (§4.7).
type SearchConfig struct {
	Limit               int  `yaml:"limit" json:"limit"`
	CandidateMultiplier int  `yaml:"candidate_multiplier" json:"candidate_multiplier"`
	UseReranking        bool `yaml:"use_reranking" json:"use_reranking"`
}

// EmbeddingsConfig configures the Embedder collaborator.
type EmbeddingsConfig struct {
	// Provider selects "ollama" (default, network-backed) or "static"
	// (deterministic offline fallback for tests and --offline mode).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// PerformanceConfig configures the Indexer/Watcher resource envelope.
type PerformanceConfig struct {
	MaxFileSize       int64         `yaml:"max_file_size" json:"max_file_size"`
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	MaxChunksInMemory int           `yaml:"max_chunks_in_memory" json:"max_chunks_in_memory"`
	WatchDebounce     time.Duration `yaml:"-" json:"watch_debounce"`
	IndexWorkers      int           `yaml:"index_workers" json:"index_workers"`
}

// ServerConfig configures the MCP server's transport.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// New returns the hardcoded defaults (§4.5, §4.6, §4.7 and §6 default
// constants).
func New() *Config {
	return &Config{
		Paths: PathsConfig{
			Exclude: nil,
		},
		Search: SearchConfig{
			Limit:               10,
			CandidateMultiplier: 5,
			UseReranking:        true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "qwen3-embedding:0.6b",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
		},
		Performance: PerformanceConfig{
			MaxFileSize:       1 * 1024 * 1024,
			BatchSize:         10,
			MaxChunksInMemory: 500,
			WatchDebounce:     1 * time.Second,
			IndexWorkers:      runtime.NumCPU(),
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// Load takes a root already resolved by ResolveRoot (positional arg, then
// SEMANTIC_CODE_ROOT, then cwd, §6), resolves the index path from it,
// applies hardcoded defaults, an optional `.semcode.yaml`/`.semcode.yml`
// at root, and environment overrides, in that order of increasing
// precedence.
func Load(root string) (*Config, error) {
	cfg := New()
	cfg.Paths.Root = root
	cfg.Paths.IndexPath = ResolveIndexPath(root)

	if err := cfg.loadFromFile(root); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveRoot implements §6's SEMANTIC_CODE_ROOT resolution: an explicit
// positional argument wins, then the environment variable, then the
// current working directory.
func ResolveRoot(positional string) (string, error) {
	if positional != "" {
		return filepath.Abs(positional)
	}
	if env := os.Getenv("SEMANTIC_CODE_ROOT"); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cwd, nil
}

// ResolveIndexPath implements §6's SEMANTIC_CODE_INDEX resolution:
// default `<root>/.semantic-code/index/`.
func ResolveIndexPath(root string) string {
	if env := os.Getenv("SEMANTIC_CODE_INDEX"); env != "" {
		return env
	}
	return filepath.Join(root, defaultIndexDirName)
}

func (c *Config) loadFromFile(root string) error {
	for _, name := range []string{".semcode.yaml", ".semcode.yml"} {
		path := filepath.Join(root, name)
		if !fileExists(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Search.Limit != 0 {
		c.Search.Limit = other.Search.Limit
	}
	if other.Search.CandidateMultiplier != 0 {
		c.Search.CandidateMultiplier = other.Search.CandidateMultiplier
	}
	c.Search.UseReranking = other.Search.UseReranking || c.Search.UseReranking

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Performance.MaxFileSize != 0 {
		c.Performance.MaxFileSize = other.Performance.MaxFileSize
	}
	if other.Performance.BatchSize != 0 {
		c.Performance.BatchSize = other.Performance.BatchSize
	}
	if other.Performance.MaxChunksInMemory != 0 {
		c.Performance.MaxChunksInMemory = other.Performance.MaxChunksInMemory
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies the highest-precedence layer. Root is
// resolved by ResolveRoot before Load is called and IndexPath by
// ResolveIndexPath at the start of Load, so they aren't repeated here.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEMCODE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SEMCODE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SEMCODE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SEMCODE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SEMCODE_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("SEMCODE_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Limit = n
		}
	}
	if v := os.Getenv("SEMCODE_CANDIDATE_MULTIPLIER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.CandidateMultiplier = n
		}
	}
}

// Validate rejects configuration values outside the ranges §6 and §4.7
// define.
func (c *Config) Validate() error {
	if c.Search.Limit < 1 || c.Search.Limit > 50 {
		return fmt.Errorf("search.limit must be in 1..50, got %d", c.Search.Limit)
	}
	if c.Search.CandidateMultiplier < 1 || c.Search.CandidateMultiplier > 20 {
		return fmt.Errorf("search.candidate_multiplier must be in 1..20, got %d", c.Search.CandidateMultiplier)
	}
	if c.Embeddings.Provider != "ollama" && c.Embeddings.Provider != "static" {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %q", c.Embeddings.Provider)
	}
	switch strings.ToLower(c.Server.Transport) {
	case "stdio":
	default:
		return fmt.Errorf("server.transport must be 'stdio', got %q", c.Server.Transport)
	}
	return nil
}

// DetectProjectType detects the project type based on marker files.
// No CLI command calls it.
func DetectProjectType(dir string) ProjectType {
	switch {
	case fileExists(filepath.Join(dir, "go.mod")):
		return ProjectTypeGo
	case fileExists(filepath.Join(dir, "Cargo.toml")):
		return ProjectTypeRust
	case fileExists(filepath.Join(dir, "package.json")):
		return ProjectTypeNode
	case fileExists(filepath.Join(dir, "pyproject.toml")), fileExists(filepath.Join(dir, "requirements.txt")):
		return ProjectTypePython
	default:
		return ProjectTypeUnknown
	}
}

// FindProjectRoot walks up from startDir looking for a `.git` directory or
// an existing `.semcode.yaml`/`.yml`, falling back to startDir itself.
// ResolveRoot does not call it: with neither a positional argument nor
// SEMANTIC_CODE_ROOT set, the CLI uses the current working directory as is.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	dir := abs
	for {
		if dirExists(filepath.Join(dir, ".git")) ||
			fileExists(filepath.Join(dir, ".semcode.yaml")) ||
			fileExists(filepath.Join(dir, ".semcode.yml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
