package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/semcode/semcode-mcp/internal/errs"
)

// ownerLock is an advisory cross-process file lock guarding the index
// directory, making concrete §4.4/§5's "a single process owns the store
// handle" concurrency invariant instead of leaving it purely documentary.
type ownerLock struct {
	flock *flock.Flock
}

func acquireOwnerLock(indexDir string) (*ownerLock, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, errs.IoFailure("failed to create index directory", err).WithDetail("path", indexDir)
	}

	lockPath := filepath.Join(indexDir, ".lock")
	fl := flock.New(lockPath)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, errs.IoFailure("failed to acquire store lock", err).WithDetail("path", lockPath)
	}
	if !acquired {
		return nil, errs.IoFailure("index is already owned by another process", fmt.Errorf("lock held")).
			WithDetail("path", lockPath)
	}
	return &ownerLock{flock: fl}, nil
}

func (l *ownerLock) release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
