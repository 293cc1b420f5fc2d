// Package store provides the persistence and retrieval layer for indexed
// chunk records: an embedded SQLite table (via modernc.org/sqlite) fronting
// an in-memory HNSW graph for approximate vector search, plus SQLite FTS5
// (with a manual keyword-scan fallback) for full-text search (§4.4).
package store

import (
	"context"
	"time"
)

// VectorDimensions is the fixed embedding width this module operates on
// (invariant 3: vector.length == 768).
const VectorDimensions = 768

// FullTextFallbackRowCap bounds the manual keyword scan used when the FTS5
// virtual table is unavailable.
const FullTextFallbackRowCap = 10000

// Record is the persisted form of a chunk: the chunk fields plus the
// embedding vector, the file content hash it was derived from, and an
// indexing timestamp (§3 VectorRecord).
type Record struct {
	ID          string
	FilePath    string
	Content     string
	StartLine   int
	EndLine     int
	Name        string
	NodeType    string
	Signature   string
	Docstring   string
	Language    string
	Vector      []float32
	ContentHash string
	IndexedAt   time.Time
}

// SearchResult is a single scored row returned by vector or full-text search.
type SearchResult struct {
	Record Record
	Score  float64
}

// SearchResults bundles full-text rows with a truncation signal: true when
// the manual keyword scan hit FullTextFallbackRowCap before scanning the
// whole table (Open Question 1 resolution).
type SearchResults struct {
	Results   []SearchResult
	Truncated bool
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	RecordCount int
	Dimensions  int
}

// Store is the persistence and retrieval contract chunk records are
// exercised through (§4.4).
type Store interface {
	// Upsert creates the backing table on first call; for each record it
	// deletes any prior record with the same ID, then inserts. A nil or
	// empty slice is a no-op.
	Upsert(ctx context.Context, records []*Record) error

	// DeleteByFilePath removes every record whose FilePath equals path.
	DeleteByFilePath(ctx context.Context, path string) error

	// Clear drops the backing table and its full-text index.
	Clear(ctx context.Context) error

	// VectorSearch returns up to limit records ordered by ascending cosine
	// distance (score = 1 - distance), restricted to rows matching filter
	// when filter is non-empty. An empty store returns an empty slice.
	VectorSearch(ctx context.Context, queryVector []float32, limit int, filter string) ([]SearchResult, error)

	// FullTextSearch scores records against text using the FTS5 index, or
	// the manual keyword scan when FTS5 is unavailable.
	FullTextSearch(ctx context.Context, text string, limit int) (SearchResults, error)

	// GetIndexedFiles returns file_path -> content_hash for every distinct
	// file currently represented in the store.
	GetIndexedFiles(ctx context.Context) (map[string]string, error)

	Count(ctx context.Context) (int, error)
	IsEmpty(ctx context.Context) (bool, error)
	Stats(ctx context.Context) (Stats, error)

	// Close releases handles without modifying persisted state.
	Close() error
}
