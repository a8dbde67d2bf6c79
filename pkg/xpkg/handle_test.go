package xpkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/transaction"
)

func mkrec(pkgver string, deps ...string) *pkgdb.PackageRecord {
	name := pkgver
	version := ""
	for i := len(pkgver) - 2; i > 0; i-- {
		if pkgver[i] == '-' && pkgver[i+1] >= '0' && pkgver[i+1] <= '9' {
			name, version = pkgver[:i], pkgver[i+1:]
			break
		}
	}
	return &pkgdb.PackageRecord{
		Name:       name,
		Version:    version,
		Pkgver:     pkgver,
		RunDepends: deps,
		State:      pkgdb.StateInstalled,
	}
}

// testHandle builds a rootdir with the given installed records and an
// optional repository index, then inits a handle over it.
func testHandle(t *testing.T, installed []*pkgdb.PackageRecord, index string) (*Handle, string) {
	t.Helper()
	rootdir := t.TempDir()

	db := pkgdb.New()
	for _, rec := range installed {
		db.Insert(rec)
	}
	require.NoError(t, db.Save(rootdir))

	cfg := Config{Rootdir: rootdir, Flags: FlagDisableSyslog}
	if index != "" {
		path := filepath.Join(rootdir, "repo-index.json")
		require.NoError(t, os.WriteFile(path, []byte(index), 0o644))
		cfg.Repositories = []string{path}
	}

	h, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, rootdir
}

func TestInitDefaults(t *testing.T) {
	rootdir := t.TempDir()
	h, err := Init(Config{Rootdir: rootdir, Flags: FlagDisableSyslog})
	require.NoError(t, err)
	defer h.Close()

	cfg := h.Config()
	assert.Equal(t, filepath.Join(rootdir, "var", "cache", "xpkg"), cfg.Cachedir)
	assert.Equal(t, filepath.Join(rootdir, "etc", "xpkg.d", "*.conf"), cfg.Conffile)
	assert.Equal(t, 0, h.DB().Len())
}

// Drop-in files merge in lexical order; later files win per key.
func TestConfigDropinMerge(t *testing.T) {
	rootdir := t.TempDir()
	confdir := filepath.Join(rootdir, "etc", "xpkg.d")
	require.NoError(t, os.MkdirAll(confdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confdir, "10-base.conf"),
		[]byte("cachedir: /first\nsyslog: false\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(confdir, "20-site.conf"),
		[]byte("cachedir: /second\n"), 0o644))

	h, err := Init(Config{Rootdir: rootdir, Flags: FlagDisableSyslog})
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "/second", h.Config().Cachedir)
	require.NotNil(t, h.Config().Syslog)
	assert.False(t, *h.Config().Syslog)
}

// S3 through the embedder API: blocked revdeps surface the dependents
// and nothing is executed.
func TestRemoveBlockedByRevdeps(t *testing.T) {
	h, rootdir := testHandle(t, []*pkgdb.PackageRecord{
		mkrec("foo-1.0"),
		mkrec("bar-1.0", "foo>=1.0"),
	}, "")

	before, err := os.ReadFile(filepath.Join(pkgdb.Dir(rootdir), pkgdb.DBFile))
	require.NoError(t, err)

	err = h.TransactionRemovePkg("foo", false)
	re, ok := xerrors.AsRevdeps(err)
	require.True(t, ok)
	assert.Equal(t, "foo", re.Pkgname)
	assert.Equal(t, []string{"bar-1.0"}, re.Revdeps)
	assert.Equal(t, []string{"bar-1.0"}, h.RevdepsOf("foo"))

	after, err := os.ReadFile(filepath.Join(pkgdb.Dir(rootdir), pkgdb.DBFile))
	require.NoError(t, err)
	assert.Equal(t, before, after, "database file untouched")
}

// S4: forcing past revdeps removes the package and keeps the broken
// dependent.
func TestRemoveForcedPastRevdeps(t *testing.T) {
	h, rootdir := testHandle(t, []*pkgdb.PackageRecord{
		mkrec("foo-1.0"),
		mkrec("bar-1.0", "foo>=1.0"),
	}, "")

	_, _ = xerrors.AsRevdeps(h.TransactionRemovePkg("foo", false))

	stats, err := h.ExecTransaction(context.Background(), transaction.Options{
		AssumeYes:    true,
		ForceRevdeps: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	reloaded, err := pkgdb.Load(rootdir)
	require.NoError(t, err)
	assert.Nil(t, reloaded.FindInstalled("foo"))
	assert.NotNil(t, reloaded.FindInstalled("bar"))
}

// Property 6: a dry run leaves the serialized database byte-identical.
func TestDryRunPurity(t *testing.T) {
	h, rootdir := testHandle(t, []*pkgdb.PackageRecord{mkrec("foo-1.0")}, "")

	before, err := os.ReadFile(filepath.Join(pkgdb.Dir(rootdir), pkgdb.DBFile))
	require.NoError(t, err)

	require.NoError(t, h.TransactionRemovePkg("foo", false))
	stats, err := h.ExecTransaction(context.Background(), transaction.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	after, err := os.ReadFile(filepath.Join(pkgdb.Dir(rootdir), pkgdb.DBFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInstallEndToEnd(t *testing.T) {
	index := `{
  "foo": {"pkgname": "foo", "version": "1.0_1", "pkgver": "foo-1.0_1", "run_depends": ["libc>=2.0"]},
  "libc": {"pkgname": "libc", "version": "2.32_1", "pkgver": "libc-2.32_1"}
}`
	h, rootdir := testHandle(t, nil, index)

	require.NoError(t, h.TransactionInstallPkg("foo", false))
	stats, err := h.ExecTransaction(context.Background(), transaction.Options{AssumeYes: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Installed)

	reloaded, err := pkgdb.Load(rootdir)
	require.NoError(t, err)
	foo := reloaded.FindInstalled("foo")
	require.NotNil(t, foo)
	assert.Equal(t, pkgdb.StateInstalled, foo.State)
	assert.False(t, foo.Automatic)
	libc := reloaded.FindInstalled("libc")
	require.NotNil(t, libc)
	assert.True(t, libc.Automatic)
}

// Unresolved dependencies abort execution before anything runs.
func TestExecBlockedOnMissingDeps(t *testing.T) {
	index := `{
  "foo": {"pkgname": "foo", "version": "1.0_1", "pkgver": "foo-1.0_1", "run_depends": ["ghost>=1.0"]}
}`
	h, _ := testHandle(t, nil, index)

	require.NoError(t, h.TransactionInstallPkg("foo", false))
	_, err := h.ExecTransaction(context.Background(), transaction.Options{AssumeYes: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost>=1.0")
}

func TestAutoremoveThroughHandle(t *testing.T) {
	orphan := mkrec("libx-1.0")
	orphan.Automatic = true
	h, rootdir := testHandle(t, []*pkgdb.PackageRecord{orphan}, "")

	require.NoError(t, h.TransactionAutoremovePkgs())
	stats, err := h.ExecTransaction(context.Background(), transaction.Options{AssumeYes: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	reloaded, err := pkgdb.Load(rootdir)
	require.NoError(t, err)
	assert.Nil(t, reloaded.FindInstalled("libx"))
}

func TestAutoremoveNoOrphansThroughHandle(t *testing.T) {
	h, _ := testHandle(t, []*pkgdb.PackageRecord{mkrec("app-1.0")}, "")
	assert.ErrorIs(t, h.TransactionAutoremovePkgs(), xerrors.ErrNoOrphans)
}

func TestPkgdbLockContention(t *testing.T) {
	h, rootdir := testHandle(t, nil, "")

	require.NoError(t, h.PkgdbLock())
	_, err := pkgdb.AcquireLock(rootdir)
	var lerr *xerrors.LockError
	require.ErrorAs(t, err, &lerr)

	h.PkgdbUnlock()
	guard, err := pkgdb.AcquireLock(rootdir)
	require.NoError(t, err)
	guard.Release()
}

func TestCleanCache(t *testing.T) {
	index := `{
  "foo": {"pkgname": "foo", "version": "2.0_1", "pkgver": "foo-2.0_1"}
}`
	h, _ := testHandle(t, nil, index)

	cachedir := h.Config().Cachedir
	require.NoError(t, os.MkdirAll(cachedir, 0o755))
	obsolete := filepath.Join(cachedir, "foo-1.0_1.xpkg")
	current := filepath.Join(cachedir, "foo-2.0_1.xpkg")
	require.NoError(t, os.WriteFile(obsolete, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(current, []byte("x"), 0o644))

	// Dry run keeps everything.
	require.NoError(t, h.CleanCache(true))
	_, err := os.Stat(obsolete)
	assert.NoError(t, err)

	require.NoError(t, h.CleanCache(false))
	_, err = os.Stat(obsolete)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(current)
	assert.NoError(t, err)
}

// The confirmation step gates non-dry-run execution.
func TestConfirmDeclined(t *testing.T) {
	h, rootdir := testHandle(t, []*pkgdb.PackageRecord{mkrec("foo-1.0")}, "")
	h.Confirm = func(plan []*transaction.Entry) bool { return false }

	require.NoError(t, h.TransactionRemovePkg("foo", false))
	_, err := h.ExecTransaction(context.Background(), transaction.Options{})
	assert.ErrorIs(t, err, xerrors.ErrCancelled)

	reloaded, err := pkgdb.Load(rootdir)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.FindInstalled("foo"))
}
