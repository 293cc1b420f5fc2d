package store

import (
	"context"
	"testing"

	"github.com/semcode/semcode-mcp/internal/errs"
	"github.com/semcode/semcode-mcp/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(lead float32) []float32 {
	v := make([]float32, VectorDimensions)
	v[0] = lead
	v[1] = 1.0
	return v
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_IsEmpty_TrueOnFreshStore(t *testing.T) {
	s := newTestStore(t)
	empty, err := s.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestStore_Upsert_EmptySlice_NoOp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Upsert(context.Background(), nil))
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_Upsert_WrongDimensions_ReturnsEmbeddingGeneration(t *testing.T) {
	s := newTestStore(t)
	err := s.Upsert(context.Background(), []*Record{{ID: "a_go_L1", Vector: make([]float32, 10)}})
	require.Error(t, err)
	assert.Equal(t, errs.KindEmbeddingGeneration, errs.GetKind(err))
}

func TestStore_Upsert_ThenCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{
		{ID: "a_go_L1", FilePath: "/t/a.go", Content: "func A() {}", Language: "go", Vector: vec(1), ContentHash: "h1"},
		{ID: "a_go_L5", FilePath: "/t/a.go", Content: "func B() {}", Language: "go", Vector: vec(2), ContentHash: "h1"},
	}))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Upsert_SameID_Replaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{{ID: "a_go_L1", FilePath: "/t/a.go", Content: "old", Language: "go", Vector: vec(1), ContentHash: "h1"}}))
	require.NoError(t, s.Upsert(ctx, []*Record{{ID: "a_go_L1", FilePath: "/t/a.go", Content: "new", Language: "go", Vector: vec(1), ContentHash: "h2"}}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	files, err := s.GetIndexedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h2", files["/t/a.go"])
}

func TestStore_DeleteByFilePath_RemovesAllRecordsForFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{
		{ID: "a_go_L1", FilePath: "/t/a.go", Content: "x", Language: "go", Vector: vec(1), ContentHash: "h1"},
		{ID: "a_go_L5", FilePath: "/t/a.go", Content: "y", Language: "go", Vector: vec(2), ContentHash: "h1"},
		{ID: "b_go_L1", FilePath: "/t/b.go", Content: "z", Language: "go", Vector: vec(3), ContentHash: "h3"},
	}))

	require.NoError(t, s.DeleteByFilePath(ctx, "/t/a.go"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	files, err := s.GetIndexedFiles(ctx)
	require.NoError(t, err)
	_, aStillPresent := files["/t/a.go"]
	assert.False(t, aStillPresent)
}

func TestStore_Clear_DropsAllRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{{ID: "a_go_L1", FilePath: "/t/a.go", Content: "x", Language: "go", Vector: vec(1), ContentHash: "h1"}}))
	require.NoError(t, s.Clear(ctx))

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	// Store must still accept further upserts after Clear recreates the schema lazily.
	require.NoError(t, s.Upsert(ctx, []*Record{{ID: "b_go_L1", FilePath: "/t/b.go", Content: "y", Language: "go", Vector: vec(2), ContentHash: "h2"}}))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_VectorSearch_EmptyStore_ReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	results, err := s.VectorSearch(context.Background(), vec(1), 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_VectorSearch_WrongQueryDimensions_ReturnsEmbeddingGeneration(t *testing.T) {
	s := newTestStore(t)
	_, err := s.VectorSearch(context.Background(), []float32{1, 2, 3}, 5, "")
	require.Error(t, err)
	assert.Equal(t, errs.KindEmbeddingGeneration, errs.GetKind(err))
}

func TestStore_VectorSearch_RanksClosestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{
		{ID: "near_go_L1", FilePath: "/t/near.go", Content: "near", Language: "go", Vector: vec(1.0), ContentHash: "h1"},
		{ID: "far_go_L1", FilePath: "/t/far.go", Content: "far", Language: "go", Vector: vec(-1.0), ContentHash: "h2"},
	}))

	results, err := s.VectorSearch(ctx, vec(1.0), 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near_go_L1", results[0].Record.ID)
}

func TestStore_VectorSearch_WithFilter_RestrictsToMatchingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{
		{ID: "a_py_L1", FilePath: "/t/a.py", Content: "python one", Language: "python", Vector: vec(1), ContentHash: "h1"},
		{ID: "b_go_L1", FilePath: "/t/b.go", Content: "go one", Language: "go", Vector: vec(1), ContentHash: "h2"},
	}))

	predicate, err := filter.Build(filter.Input{FilePattern: "*.py"})
	require.NoError(t, err)
	assert.Equal(t, "language = 'python'", predicate)

	results, err := s.VectorSearch(ctx, vec(1), 10, predicate)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a_py_L1", results[0].Record.ID)
}

func TestStore_FullTextSearch_ManualFallback_ScoresNameHigherThanContent(t *testing.T) {
	s := newTestStore(t)
	s.ftsAvailable = false // force the manual scan path regardless of FTS5 availability
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []*Record{
		{ID: "a_go_L1", FilePath: "/t/a.go", Content: "plain body with no match", Name: "authenticate", Language: "go", Vector: vec(1), ContentHash: "h1"},
		{ID: "b_go_L1", FilePath: "/t/b.go", Content: "this mentions authenticate only in body", Name: "unrelated", Language: "go", Vector: vec(2), ContentHash: "h2"},
	}))

	results, err := s.FullTextSearch(ctx, "authenticate", 10)
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, "a_go_L1", results.Results[0].Record.ID)
	assert.False(t, results.Truncated)
}

func TestStore_FullTextSearch_EmptyQuery_ReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	results, err := s.FullTextSearch(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results.Results)
}

func TestStore_Close_IsIdempotent(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStore_OperationsAfterClose_ReturnError(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Count(context.Background())
	assert.Error(t, err)
}
