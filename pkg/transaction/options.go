package transaction

import "github.com/ajxudir/xpkg/pkg/pkgdb"

// Options control driver execution.
type Options struct {
	// DryRun replaces every mutation with an event emission; the
	// database is never modified and no collaborator I/O runs.
	DryRun bool

	// AssumeYes skips the confirmation step.
	AssumeYes bool

	// ForceRemoveFiles removes files without verifying their recorded
	// hash.
	ForceRemoveFiles bool

	// ForceRevdeps proceeds with removals even when live reverse
	// dependents remain.
	ForceRevdeps bool

	// Verbose emits per-file events during removal.
	Verbose bool
}

// Worker performs the actual filesystem work for each plan step. The
// driver calls it synchronously; every call completes before the
// driver advances.
type Worker interface {
	// Download fetches the package archive into the cache.
	Download(rec *pkgdb.PackageRecord) error

	// Verify checks the downloaded archive signature/hash.
	Verify(rec *pkgdb.PackageRecord) error

	// Unpack extracts the archive under the root directory.
	Unpack(rec *pkgdb.PackageRecord) error

	// Configure runs the post-install step.
	Configure(rec *pkgdb.PackageRecord) error

	// RemoveFile unlinks one manifest entry, verifying the recorded
	// hash first unless verifyHash is false. Directory entries that
	// are not empty must fail with ENOTEMPTY so the driver can apply
	// its keep-going policy.
	RemoveFile(rec *pkgdb.PackageRecord, f pkgdb.FileEntry, verifyHash bool) error
}

// Stats summarizes what a transaction execution did.
type Stats struct {
	Installed  int
	Updated    int
	Configured int
	Removed    int
}
