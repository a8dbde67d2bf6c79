package pkgdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkrec(name, version string, deps ...string) *PackageRecord {
	return &PackageRecord{
		Name:       name,
		Version:    version,
		Pkgver:     name + "-" + version,
		RunDepends: deps,
		State:      StateInstalled,
	}
}

func TestFindInstalled(t *testing.T) {
	db := New()
	db.Insert(mkrec("libc", "2.32_1"))

	require.NotNil(t, db.FindInstalled("libc"))
	assert.Equal(t, "libc-2.32_1", db.FindInstalled("libc").Pkgver)
	assert.Nil(t, db.FindInstalled("nope"))
	assert.Equal(t, StateInstalled, db.StateOf("libc"))
	assert.Equal(t, StateNotInstalled, db.StateOf("nope"))
}

func TestFindVirtual(t *testing.T) {
	db := New()
	gawk := mkrec("gawk", "5.1_1")
	gawk.Provides = []string{"awk-1"}
	db.Insert(gawk)

	got := db.FindVirtual("awk")
	require.NotNil(t, got)
	assert.Equal(t, "gawk", got.Name)
	assert.Nil(t, db.FindVirtual("sed"))
}

func TestRevdepsIndex(t *testing.T) {
	db := New()
	db.Insert(mkrec("libc", "2.32_1"))
	db.Insert(mkrec("foo", "1.0_1", "libc>=2.0"))
	db.Insert(mkrec("bar", "1.0_1", "libc>=2.0", "foo>=1.0"))

	assert.Equal(t, []string{"bar-1.0_1", "foo-1.0_1"}, db.RevdepsOf("libc"))
	assert.Equal(t, []string{"bar-1.0_1"}, db.RevdepsOf("foo"))
	assert.Empty(t, db.RevdepsOf("bar"))
}

// Dependencies on a virtual name must index against the installed
// provider.
func TestRevdepsVirtualProvider(t *testing.T) {
	db := New()
	gawk := mkrec("gawk", "5.1_1")
	gawk.Provides = []string{"awk-1"}
	db.Insert(gawk)
	db.Insert(mkrec("script", "1.0_1", "awk>=1"))
	db.Reindex()

	assert.Equal(t, []string{"script-1.0_1"}, db.RevdepsOf("gawk"))
}

func TestRemoveUpdatesIndexes(t *testing.T) {
	db := New()
	db.Insert(mkrec("libc", "2.32_1"))
	db.Insert(mkrec("foo", "1.0_1", "libc>=2.0"))

	db.Remove("foo")
	assert.Nil(t, db.FindInstalled("foo"))
	assert.Empty(t, db.RevdepsOf("libc"))
	assert.Equal(t, []string{"libc"}, db.Names())
}

func TestSetState(t *testing.T) {
	db := New()
	db.Insert(mkrec("foo", "1.0_1"))
	db.SetState("foo", StateHalfRemoved)
	assert.Equal(t, StateHalfRemoved, db.StateOf("foo"))
}

func TestProvidesVirtual(t *testing.T) {
	gawk := mkrec("gawk", "5.1_1")
	gawk.Provides = []string{"awk-1"}

	ok, err := gawk.ProvidesVirtual("awk>=1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gawk.ProvidesVirtual("awk>=2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gawk.ProvidesVirtual("sed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerializeRoundTrip(t *testing.T) {
	db := New()
	db.Insert(mkrec("libc", "2.32_1"))
	db.Insert(mkrec("foo", "1.0_1", "libc>=2.0"))

	rootdir := t.TempDir()
	require.NoError(t, db.Save(rootdir))

	loaded, err := Load(rootdir)
	require.NoError(t, err)
	assert.Equal(t, []string{"libc", "foo"}, loaded.Names())
	assert.Equal(t, []string{"foo-1.0_1"}, loaded.RevdepsOf("libc"))

	// A load/save round-trip is byte-identical.
	first, err := db.Serialize()
	require.NoError(t, err)
	second, err := loaded.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadMissingIsEmpty(t *testing.T) {
	db, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, db.Len())
}

func TestAcquireLock(t *testing.T) {
	rootdir := t.TempDir()

	guard, err := AcquireLock(rootdir)
	require.NoError(t, err)

	_, err = AcquireLock(rootdir)
	require.Error(t, err, "second acquisition must fail while held")

	guard.Release()
	guard.Release() // idempotent

	guard2, err := AcquireLock(rootdir)
	require.NoError(t, err)
	guard2.Release()

	_, err = os.Stat(filepath.Join(Dir(rootdir), LockFile))
	assert.NoError(t, err)
}

// The guard must release even when the critical section panics.
func TestLockReleasedOnPanic(t *testing.T) {
	rootdir := t.TempDir()

	func() {
		guard, err := AcquireLock(rootdir)
		require.NoError(t, err)
		defer guard.Release()
		defer func() { _ = recover() }()
		panic("boom")
	}()

	guard, err := AcquireLock(rootdir)
	require.NoError(t, err)
	guard.Release()
}
