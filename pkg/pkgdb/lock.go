package pkgdb

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
)

// LockFile is the advisory lock file name inside the database
// directory.
const LockFile = "pkgdb.lock"

// LockGuard holds the exclusive advisory lock on the database
// directory. Release is idempotent and must run on every exit path;
// callers defer it immediately after acquisition.
type LockGuard struct {
	fl       *flock.Flock
	released bool
}

// AcquireLock takes the database lock for rootdir without blocking.
// Contention or an OS failure maps to a LockError carrying the
// original error.
func AcquireLock(rootdir string) (*LockGuard, error) {
	dir := Dir(rootdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &xerrors.LockError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, LockFile)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, &xerrors.LockError{Path: path, Err: err}
	}
	if !ok {
		return nil, &xerrors.LockError{Path: path}
	}
	return &LockGuard{fl: fl}, nil
}

// Release drops the lock. Calling it more than once is harmless.
func (g *LockGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	_ = g.fl.Unlock()
}
