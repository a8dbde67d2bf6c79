package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/repo"
)

func pkgvers(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Pkg.Pkgver
	}
	return out
}

// S2: dependencies sort before their dependents.
func TestSortInstallOrder(t *testing.T) {
	db := pkgdb.New()
	pool := repo.NewPool(mkrepo("repo-a",
		mkrec("foo-1.0", "bar>=1"),
		mkrec("bar-2.0", "baz>=1"),
		mkrec("baz-1.0"),
	))
	b := NewBuilder(db, pool)
	require.NoError(t, b.InstallPkg("foo", false))

	sorted, err := b.Transaction().Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"baz-1.0", "bar-2.0", "foo-1.0"}, pkgvers(sorted))
}

// Property 2: the emitted order is a valid topological order.
func TestSortIsTopological(t *testing.T) {
	db := pkgdb.New()
	pool := repo.NewPool(mkrepo("repo-a",
		mkrec("app-1.0", "libb>=1", "libc>=1"),
		mkrec("libb-1.0", "libd>=1"),
		mkrec("libc-1.0", "libd>=1"),
		mkrec("libd-1.0"),
	))
	b := NewBuilder(db, pool)
	require.NoError(t, b.InstallPkg("app", false))

	sorted, err := b.Transaction().Sort()
	require.NoError(t, err)

	pos := map[string]int{}
	for i, e := range sorted {
		pos[e.Pkg.Name] = i
	}
	assert.Less(t, pos["libd"], pos["libb"])
	assert.Less(t, pos["libd"], pos["libc"])
	assert.Less(t, pos["libb"], pos["app"])
	assert.Less(t, pos["libc"], pos["app"])
}

// Entries with no in-plan dependencies keep insertion order.
func TestSortStableForIndependents(t *testing.T) {
	tx := NewTransaction()
	tx.add(&Entry{Pkg: mkrec("a-1.0"), Action: ActionInstall})
	tx.add(&Entry{Pkg: mkrec("b-1.0"), Action: ActionInstall})
	tx.add(&Entry{Pkg: mkrec("c-1.0"), Action: ActionInstall})

	sorted, err := tx.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1.0", "b-1.0", "c-1.0"}, pkgvers(sorted))
}

func TestSortCycleDetected(t *testing.T) {
	tx := NewTransaction()
	tx.add(&Entry{Pkg: mkrec("a-1.0", "b>=1"), Action: ActionInstall})
	tx.add(&Entry{Pkg: mkrec("b-1.0", "a>=1"), Action: ActionInstall})

	_, err := tx.Sort()
	var cerr *xerrors.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.GreaterOrEqual(t, len(cerr.Cycle), 3)
	assert.Equal(t, cerr.Cycle[0], cerr.Cycle[len(cerr.Cycle)-1])
}

// S5 ordering: a removal runs only after the removals that depend on
// it.
func TestSortRemovalOrder(t *testing.T) {
	tx := NewTransaction()
	tx.add(&Entry{Pkg: mkrec("foo-1.0"), Action: ActionRemove})
	tx.add(&Entry{Pkg: mkrec("bar-1.0", "foo>=1.0"), Action: ActionRemove})

	sorted, err := tx.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar-1.0", "foo-1.0"}, pkgvers(sorted))
}

// A plan entry satisfying a dependency virtually is still an edge.
func TestSortVirtualEdge(t *testing.T) {
	tx := NewTransaction()
	app := mkrec("app-1.0", "awk>=1")
	gawk := mkrec("gawk-5.1")
	gawk.Provides = []string{"awk-1"}
	tx.add(&Entry{Pkg: app, Action: ActionInstall})
	tx.add(&Entry{Pkg: gawk, Action: ActionInstall})

	sorted, err := tx.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"gawk-5.1", "app-1.0"}, pkgvers(sorted))
}
