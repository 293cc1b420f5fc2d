package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/semcode/semcode-mcp/internal/errs"
)

// SQLiteStore is the unified Store implementation: SQLite is the durable
// table of record (chunk fields + vector blob), fronted by an in-memory
// vectorIndex for ANN search and a SQLite FTS5 virtual table (plus manual
// keyword-scan fallback) for full-text search. It collapses the three-way
// metadata/BM25/vector split the teacher's store package carried into one
// component, matching §4.4's single Store contract.
type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	path         string
	vectors      *vectorIndex
	logger       *slog.Logger
	ftsAvailable bool
	closed       bool
	owner        *ownerLock
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite-backed store at path ("" for an in-memory
// store, used by tests) and rebuilds the in-memory vector index from any
// existing rows.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	var owner *ownerLock
	if path != "" {
		dir := filepath.Dir(path)
		lock, err := acquireOwnerLock(dir)
		if err != nil {
			return nil, err
		}
		owner = lock
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = owner.release()
		return nil, errs.IoFailure("failed to open store", err).WithDetail("path", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = owner.release()
			return nil, errs.IoFailure("failed to configure store", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, vectors: newVectorIndex(), logger: logger, owner: owner}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		_ = owner.release()
		return nil, err
	}
	if err := s.rebuildVectorIndex(context.Background()); err != nil {
		_ = db.Close()
		_ = owner.release()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		content TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		name TEXT,
		node_type TEXT,
		signature TEXT,
		docstring TEXT,
		language TEXT,
		vector BLOB NOT NULL,
		content_hash TEXT NOT NULL,
		indexed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
	CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errs.IoFailure("failed to create chunks table", err)
	}

	// A full-text index is created once, non-fatally (§4.4 "Schema /
	// durability"): failure here just leaves ftsAvailable false and
	// FullTextSearch always uses the manual scan.
	_, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		id UNINDEXED, name, signature, content, tokenize='unicode61'
	)`)
	if err != nil {
		s.logger.Warn("full-text index creation failed, falling back to manual keyword scan",
			slog.String("error", err.Error()))
		s.ftsAvailable = false
	} else {
		s.ftsAvailable = true
	}
	return nil
}

func (s *SQLiteStore) rebuildVectorIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector FROM chunks`)
	if err != nil {
		return errs.IoFailure("failed to read existing vectors", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return errs.IoFailure("failed to scan vector row", err)
		}
		s.vectors.add(id, blobToVector(blob))
	}
	return rows.Err()
}

// Upsert implements Store.Upsert.
func (s *SQLiteStore) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if err := validateVector(r.Vector); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IoFailure("failed to begin upsert transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return errs.IoFailure("failed to prepare delete", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, file_path, content, start_line, end_line, name, node_type, signature, docstring, language, vector, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errs.IoFailure("failed to prepare insert", err)
	}
	defer insertStmt.Close()

	var ftsDelete, ftsInsert *sql.Stmt
	if s.ftsAvailable {
		ftsDelete, err = tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE id = ?`)
		if err != nil {
			return errs.IoFailure("failed to prepare fts delete", err)
		}
		defer ftsDelete.Close()
		ftsInsert, err = tx.PrepareContext(ctx, `INSERT INTO chunks_fts (id, name, signature, content) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return errs.IoFailure("failed to prepare fts insert", err)
		}
		defer ftsInsert.Close()
	}

	now := time.Now()
	for _, r := range records {
		indexedAt := r.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = now
		}

		if _, err := deleteStmt.ExecContext(ctx, r.ID); err != nil {
			return errs.IoFailure("failed to delete prior record", err).WithDetail("id", r.ID)
		}
		if _, err := insertStmt.ExecContext(ctx, r.ID, r.FilePath, r.Content, r.StartLine, r.EndLine,
			r.Name, r.NodeType, r.Signature, r.Docstring, r.Language, vectorToBlob(r.Vector),
			r.ContentHash, indexedAt.UnixNano()); err != nil {
			return errs.IoFailure("failed to insert record", err).WithDetail("id", r.ID)
		}
		if s.ftsAvailable {
			if _, err := ftsDelete.ExecContext(ctx, r.ID); err != nil {
				return errs.IoFailure("failed to delete prior fts row", err).WithDetail("id", r.ID)
			}
			if _, err := ftsInsert.ExecContext(ctx, r.ID, r.Name, r.Signature, r.Content); err != nil {
				return errs.IoFailure("failed to insert fts row", err).WithDetail("id", r.ID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.IoFailure("failed to commit upsert", err)
	}

	for _, r := range records {
		s.vectors.add(r.ID, r.Vector)
	}
	return nil
}

// DeleteByFilePath implements Store.DeleteByFilePath.
func (s *SQLiteStore) DeleteByFilePath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return errs.IoFailure("failed to enumerate records for deletion", err).WithDetail("file_path", path)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errs.IoFailure("failed to scan id for deletion", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.IoFailure("failed to enumerate records for deletion", err)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IoFailure("failed to begin delete transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.ftsAvailable {
		placeholders := make([]string, len(ids))
		args := make([]any, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args[i] = id
		}
		q := fmt.Sprintf(`DELETE FROM chunks_fts WHERE id IN (%s)`, strings.Join(placeholders, ","))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return errs.IoFailure("failed to delete fts rows", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, path); err != nil {
		return errs.IoFailure("failed to delete records", err).WithDetail("file_path", path)
	}
	if err := tx.Commit(); err != nil {
		return errs.IoFailure("failed to commit deletion", err)
	}

	for _, id := range ids {
		s.vectors.remove(id)
	}
	return nil
}

// Clear implements Store.Clear.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS chunks`); err != nil {
		return errs.IoFailure("failed to drop chunks table", err)
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS chunks_fts`); err != nil {
		return errs.IoFailure("failed to drop fts table", err)
	}
	s.vectors = newVectorIndex()
	return nil
}

// VectorSearch implements Store.VectorSearch (§4.4).
func (s *SQLiteStore) VectorSearch(ctx context.Context, queryVector []float32, limit int, filter string) ([]SearchResult, error) {
	if err := validateVector(queryVector); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	if filter == "" {
		hits := s.vectors.search(queryVector, limit)
		return s.hydrate(ctx, hits)
	}
	return s.bruteForceFilteredSearch(ctx, queryVector, limit, filter)
}

// bruteForceFilteredSearch evaluates the filter predicate directly against
// the SQLite table (the predicate is the Filter Builder's sanitized SQL
// dialect fragment) and ranks the matching rows exactly, since the HNSW
// graph has no notion of a row predicate.
func (s *SQLiteStore) bruteForceFilteredSearch(ctx context.Context, queryVector []float32, limit int, filter string) ([]SearchResult, error) {
	query := `SELECT id, file_path, content, start_line, end_line, name, node_type, signature, docstring, language, vector, content_hash, indexed_at
		FROM chunks WHERE ` + filter
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.IoFailure("filtered vector search query failed", err).WithDetail("filter", filter)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, vec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		distance := cosineDistance(queryVector, vec)
		rec.Vector = vec
		results = append(results, SearchResult{Record: rec, Score: float64(distanceToScore(distance))})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.IoFailure("filtered vector search scan failed", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SQLiteStore) hydrate(ctx context.Context, hits []SearchResult) ([]SearchResult, error) {
	if len(hits) == 0 {
		return []SearchResult{}, nil
	}

	placeholders := make([]string, len(hits))
	args := make([]any, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, h := range hits {
		placeholders[i] = "?"
		args[i] = h.Record.ID
		scoreByID[h.Record.ID] = h.Score
	}

	query := fmt.Sprintf(`SELECT id, file_path, content, start_line, end_line, name, node_type, signature, docstring, language, vector, content_hash, indexed_at
		FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.IoFailure("failed to hydrate vector search results", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, vec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		rec.Vector = vec
		results = append(results, SearchResult{Record: rec, Score: scoreByID[rec.ID]})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.IoFailure("failed to hydrate vector search results", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// FullTextSearch implements Store.FullTextSearch (§4.4).
func (s *SQLiteStore) FullTextSearch(ctx context.Context, text string, limit int) (SearchResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return SearchResults{}, errStoreClosed
	}
	if strings.TrimSpace(text) == "" {
		return SearchResults{}, nil
	}

	if s.ftsAvailable {
		results, err := s.ftsSearch(ctx, text, limit)
		if err == nil {
			return SearchResults{Results: results}, nil
		}
		s.logger.Warn("fts query failed, falling back to manual keyword scan", slog.String("error", err.Error()))
	}
	return s.manualKeywordScan(ctx, text, limit)
}

func (s *SQLiteStore) ftsSearch(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.file_path, c.content, c.start_line, c.end_line, c.name, c.node_type, c.signature, c.docstring, c.language, c.vector, c.content_hash, c.indexed_at, bm25(chunks_fts)
		FROM chunks_fts JOIN chunks c ON c.id = chunks_fts.id
		WHERE chunks_fts MATCH ? ORDER BY bm25(chunks_fts) LIMIT ?`, text, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var rec Record
		var vecBlob []byte
		var indexedAtNano int64
		var bm25Score float64
		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.Content, &rec.StartLine, &rec.EndLine,
			&rec.Name, &rec.NodeType, &rec.Signature, &rec.Docstring, &rec.Language, &vecBlob,
			&rec.ContentHash, &indexedAtNano, &bm25Score); err != nil {
			return nil, err
		}
		rec.Vector = blobToVector(vecBlob)
		rec.IndexedAt = time.Unix(0, indexedAtNano)
		results = append(results, SearchResult{Record: rec, Score: -bm25Score})
	}
	return results, rows.Err()
}

// manualKeywordScan implements the fallback formula exactly (§4.4):
// score = 2*hits(name) + 1.5*hits(signature) + 1*hits(content), dropping
// zero-score rows, normalized by keywords*4, capped at FullTextFallbackRowCap
// rows scanned.
func (s *SQLiteStore) manualKeywordScan(ctx context.Context, text string, limit int) (SearchResults, error) {
	keywords := strings.Fields(strings.ToLower(text))
	if len(keywords) == 0 {
		return SearchResults{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, content, start_line, end_line, name, node_type, signature, docstring, language, vector, content_hash, indexed_at
		FROM chunks LIMIT ?`, FullTextFallbackRowCap+1)
	if err != nil {
		return SearchResults{}, errs.IoFailure("manual keyword scan query failed", err)
	}
	defer rows.Close()

	var scanned int
	var scored []SearchResult
	for rows.Next() {
		scanned++
		if scanned > FullTextFallbackRowCap {
			break
		}
		rec, vec, err := scanRecord(rows)
		if err != nil {
			return SearchResults{}, err
		}
		rec.Vector = vec

		nameL := strings.ToLower(rec.Name)
		sigL := strings.ToLower(rec.Signature)
		contentL := strings.ToLower(rec.Content)

		var score float64
		for _, kw := range keywords {
			score += 2*float64(strings.Count(nameL, kw)) +
				1.5*float64(strings.Count(sigL, kw)) +
				1*float64(strings.Count(contentL, kw))
		}
		if score == 0 {
			continue
		}
		scored = append(scored, SearchResult{Record: rec, Score: score / float64(len(keywords)*4)})
	}
	if err := rows.Err(); err != nil {
		return SearchResults{}, errs.IoFailure("manual keyword scan scan failed", err)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	truncated := scanned > FullTextFallbackRowCap
	return SearchResults{Results: scored, Truncated: truncated}, nil
}

// GetIndexedFiles implements Store.GetIndexedFiles.
func (s *SQLiteStore) GetIndexedFiles(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT file_path, content_hash FROM chunks`)
	if err != nil {
		return nil, errs.IoFailure("failed to enumerate indexed files", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var filePath, hash string
		if err := rows.Scan(&filePath, &hash); err != nil {
			return nil, errs.IoFailure("failed to scan indexed file row", err)
		}
		if _, ok := result[filePath]; !ok {
			result[filePath] = hash
		}
	}
	return result, rows.Err()
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errStoreClosed
	}
	// Clear drops the chunks table; until the next Upsert recreates it the
	// store holds no records.
	var tables int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'chunks'`).Scan(&tables); err != nil {
		return 0, errs.IoFailure("failed to count records", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM chunks`).Scan(&count); err != nil {
		return 0, errs.IoFailure("failed to count records", err)
	}
	return count, nil
}

// IsEmpty implements Store.IsEmpty.
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Stats implements Store.Stats.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{RecordCount: count, Dimensions: VectorDimensions}, nil
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.owner.release()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanRecord(rows *sql.Rows) (Record, []float32, error) {
	var rec Record
	var vecBlob []byte
	var indexedAtNano int64
	if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.Content, &rec.StartLine, &rec.EndLine,
		&rec.Name, &rec.NodeType, &rec.Signature, &rec.Docstring, &rec.Language, &vecBlob,
		&rec.ContentHash, &indexedAtNano); err != nil {
		return Record{}, nil, errs.IoFailure("failed to scan record row", err)
	}
	rec.IndexedAt = time.Unix(0, indexedAtNano)
	return rec, blobToVector(vecBlob), nil
}

func vectorToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func validateVector(v []float32) error {
	if len(v) != VectorDimensions {
		return errs.EmbeddingGeneration(
			fmt.Sprintf("embedding vector has %d dimensions, expected %d", len(v), VectorDimensions), nil,
		).WithDetail("expected", strconv.Itoa(VectorDimensions)).WithDetail("got", strconv.Itoa(len(v)))
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return errs.EmbeddingGeneration("embedding vector contains a non-finite value", nil)
		}
	}
	return nil
}
