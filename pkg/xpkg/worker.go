package xpkg

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
)

// fsWorker is the built-in collaborator. It implements the removal
// side (hash verification and unlink under the root directory); the
// archive side (download, signature verification, extraction) belongs
// to the repository tooling and is injected by embedders that need it,
// so the built-in phases are pass-throughs.
type fsWorker struct {
	rootdir string
}

func (w *fsWorker) Download(rec *pkgdb.PackageRecord) error { return nil }

func (w *fsWorker) Verify(rec *pkgdb.PackageRecord) error { return nil }

func (w *fsWorker) Unpack(rec *pkgdb.PackageRecord) error { return nil }

func (w *fsWorker) Configure(rec *pkgdb.PackageRecord) error { return nil }

// RemoveFile verifies the recorded hash (unless disabled) and unlinks
// one manifest entry. Errors keep their errno so the driver's
// ENOTEMPTY policy can see it.
func (w *fsWorker) RemoveFile(rec *pkgdb.PackageRecord, f pkgdb.FileEntry, verifyHash bool) error {
	path := filepath.Join(w.rootdir, f.Path)
	if verifyHash && !f.Dir && f.Hash != "" {
		sum, err := fileSHA256(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Already gone; nothing to do.
				return nil
			}
			return &xerrors.IOError{Op: "read", Path: path, Errno: errnoOf(err)}
		}
		if sum != f.Hash {
			return &xerrors.HashError{Path: path}
		}
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		op := "unlink"
		if f.Dir {
			op = "rmdir"
		}
		return &xerrors.IOError{Op: op, Path: path, Errno: errnoOf(err)}
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	fp, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fp.Close()
	h := sha256.New()
	if _, err := io.Copy(h, fp); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
