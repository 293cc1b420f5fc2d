package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridWatcher_NewHybridWatcher(t *testing.T) {
	opts := DefaultOptions()

	w, err := NewHybridWatcher(opts)

	require.NoError(t, err)
	require.NotNil(t, w)
	defer func() { _ = w.Stop() }()
}

func TestHybridWatcher_DetectsFileCreation(t *testing.T) {
	tempDir := t.TempDir()
	opts := Options{
		DebounceWindow:  20 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(tempDir, "newfile.go")
	require.NoError(t, os.WriteFile(testFile, []byte("package main"), 0o644))

	select {
	case event := <-w.Events():
		assert.Equal(t, OpCreate, event.Operation)
		assert.Equal(t, "newfile.go", filepath.Base(event.Path))
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for create event")
	}

	require.NoError(t, w.Stop())
}

func TestHybridWatcher_DetectsFileModification(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "existing.go")
	require.NoError(t, os.WriteFile(testFile, []byte("package main"), 0o644))

	opts := Options{
		DebounceWindow:  20 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(testFile, []byte("package main\nfunc main() {}"), 0o644))

	select {
	case event := <-w.Events():
		assert.Contains(t, []Operation{OpModify, OpCreate}, event.Operation)
		assert.Equal(t, "existing.go", filepath.Base(event.Path))
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for modify event")
	}

	require.NoError(t, w.Stop())
}

func TestHybridWatcher_DetectsFileDeletion(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "todelete.go")
	require.NoError(t, os.WriteFile(testFile, []byte("package main"), 0o644))

	opts := Options{
		DebounceWindow:  500 * time.Millisecond, // large, so delete-bypass is unambiguous
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Remove(testFile))

	select {
	case event := <-w.Events():
		assert.Equal(t, OpDelete, event.Operation)
		assert.Equal(t, "todelete.go", filepath.Base(event.Path))
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("delete did not bypass the debounce window in time")
	}

	require.NoError(t, w.Stop())
}

func TestHybridWatcher_IgnoresGitignorePatterns(t *testing.T) {
	tempDir := t.TempDir()
	gitignorePath := filepath.Join(tempDir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("*.tmp\n"), 0o644))

	opts := Options{
		DebounceWindow:  20 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	tmpFile := filepath.Join(tempDir, "ignored.tmp")
	require.NoError(t, os.WriteFile(tmpFile, []byte("temp"), 0o644))

	goFile := filepath.Join(tempDir, "included.go")
	require.NoError(t, os.WriteFile(goFile, []byte("package main"), 0o644))

	var gotGoFile bool
	timeout := time.After(1 * time.Second)
loop:
	for {
		select {
		case event := <-w.Events():
			if filepath.Base(event.Path) == "included.go" {
				gotGoFile = true
			}
			assert.NotEqual(t, ".tmp", filepath.Ext(event.Path),
				"should not receive events for .tmp files")
		case <-timeout:
			break loop
		}
	}

	assert.True(t, gotGoFile, "should have received event for .go file")
	require.NoError(t, w.Stop())
}

func TestHybridWatcher_IgnoresSemanticCodeDirectory(t *testing.T) {
	tempDir := t.TempDir()

	indexDir := filepath.Join(tempDir, ".semantic-code")
	require.NoError(t, os.MkdirAll(indexDir, 0o755))

	opts := Options{
		DebounceWindow:  20 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	indexFile := filepath.Join(indexDir, "index.db")
	require.NoError(t, os.WriteFile(indexFile, []byte("data"), 0o644))

	goFile := filepath.Join(tempDir, "main.go")
	require.NoError(t, os.WriteFile(goFile, []byte("package main"), 0o644))

	var gotGoFile bool
	timeout := time.After(1 * time.Second)
loop:
	for {
		select {
		case event := <-w.Events():
			if filepath.Base(event.Path) == "main.go" {
				gotGoFile = true
			}
			assert.NotContains(t, event.Path, ".semantic-code",
				"should not receive events for .semantic-code directory")
		case <-timeout:
			break loop
		}
	}

	assert.True(t, gotGoFile, "should have received event for .go file")
	require.NoError(t, w.Stop())
}

func TestHybridWatcher_DetectsNewSubdirectory(t *testing.T) {
	tempDir := t.TempDir()
	opts := Options{
		DebounceWindow:  20 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx, tempDir) }()
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(tempDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))
	subFile := filepath.Join(subDir, "sub.go")
	require.NoError(t, os.WriteFile(subFile, []byte("package subdir"), 0o644))

	var gotEvent bool
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case event := <-w.Events():
			if event.Operation == OpCreate {
				gotEvent = true
			}
		case <-timeout:
			break loop
		}
	}

	assert.True(t, gotEvent, "should have received create event for subdirectory or file")
	require.NoError(t, w.Stop())
}

func TestHybridWatcher_Stop_ClosesChannels(t *testing.T) {
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	require.NoError(t, w.Stop())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestHybridWatcher_DroppedEvents_InitiallyZero(t *testing.T) {
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Equal(t, uint64(0), w.DroppedEvents())
}

func TestHybridWatcher_DroppedEvents_IncrementsOnOverflow(t *testing.T) {
	opts := Options{
		EventBufferSize: 1, // Very small buffer to trigger overflow
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	w.emitEvent(FileEvent{Path: "/test1.go", Operation: OpCreate})
	w.emitEvent(FileEvent{Path: "/test2.go", Operation: OpCreate})
	w.emitEvent(FileEvent{Path: "/test3.go", Operation: OpCreate})

	assert.Equal(t, uint64(2), w.DroppedEvents())
}
