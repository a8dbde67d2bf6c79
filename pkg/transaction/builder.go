package transaction

import (
	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/repo"
	"github.com/ajxudir/xpkg/pkg/vercmp"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

// MaxDepth caps dependency recursion. A chain deeper than this fails
// resolution instead of walking a pathological or cyclic repository.
const MaxDepth = 512

// Builder accumulates a transaction by resolving user requests against
// the installed database and the repository pool. It reads the
// database once per transaction; collaborators must not mutate the
// database mid-resolution.
type Builder struct {
	db   *pkgdb.DB
	pool *repo.Pool
	tx   *Transaction
}

// NewBuilder returns a builder over the given database snapshot and
// repository pool.
func NewBuilder(db *pkgdb.DB, pool *repo.Pool) *Builder {
	return &Builder{db: db, pool: pool, tx: NewTransaction()}
}

// Transaction returns the transaction under construction.
func (b *Builder) Transaction() *Transaction {
	return b.tx
}

// InstallPkg stages a root install/update request for a dependency
// pattern. Entries staged for the root itself carry the given
// automatic flag; dependencies pulled in during resolution are always
// automatic. A failed root leaves the transaction as it was before the
// call.
func (b *Builder) InstallPkg(pattern string, automatic bool) error {
	snap := b.tx.snapshot()
	if err := b.installPkg(pattern, automatic); err != nil {
		b.tx.rollback(snap)
		return err
	}
	return nil
}

func (b *Builder) installPkg(pattern string, automatic bool) error {
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return err
	}

	// An installed record matching the pattern short-circuits: an
	// unpacked package only needs its configuration completed.
	if inst := b.db.FindInstalled(name); inst != nil {
		ok, err := vercmp.Match(inst.Version, pattern)
		if err != nil {
			return err
		}
		if ok && inst.State == pkgdb.StateUnpacked {
			verbose.Debugf("%s: unpacked, queueing configure\n", inst.Pkgver)
			b.tx.add(&Entry{Pkg: inst.Clone(), Action: ActionConfigure, Automatic: automatic})
			return nil
		}
	}

	cand, err := b.pool.FindVirtualPkg(pattern)
	if err != nil {
		return err
	}
	if cand == nil {
		if cand, err = b.pool.FindPkg(pattern); err != nil {
			return err
		}
	}
	if cand == nil {
		// A fully installed match with no repository candidate is a
		// no-op, not a failure.
		if inst := b.db.FindInstalled(name); inst != nil && inst.State == pkgdb.StateInstalled {
			if ok, err := vercmp.Match(inst.Version, pattern); err == nil && ok {
				return nil
			}
		}
		return &xerrors.RepositoryMissError{Pattern: pattern}
	}

	entry := b.stage(cand, automatic)
	return b.resolveRundeps(entry.Pkg, 0)
}

// RemovePkg stages a removal for an installed package. With recursive
// set, dependencies that would only remain installed because of this
// package are staged too. When live reverse dependents remain the
// entry is held and a RevdepsError is returned; the caller decides
// whether to force execution.
func (b *Builder) RemovePkg(name string, recursive bool) error {
	rec := b.db.FindInstalled(name)
	if rec == nil {
		return &xerrors.NotInstalledError{Pkgname: name}
	}
	entry := b.tx.add(&Entry{Pkg: rec.Clone(), Action: ActionRemove})

	if recursive {
		for _, dep := range b.collectAutoDeps(rec) {
			if b.tx.Entry(dep.Name) == nil {
				b.tx.add(&Entry{Pkg: dep.Clone(), Action: ActionRemove, Automatic: true})
			}
		}
	}

	if revdeps := b.liveRevdeps(name); len(revdeps) > 0 {
		entry.Action = ActionHoldRemove
		return &xerrors.RevdepsError{Pkgname: name, Revdeps: revdeps}
	}
	return nil
}

// liveRevdeps returns the reverse dependents of name that are not
// themselves queued for removal.
func (b *Builder) liveRevdeps(name string) []string {
	var out []string
	for _, pkgver := range b.db.RevdepsOf(name) {
		depName, _, err := vercmp.SplitPkgver(pkgver)
		if err != nil {
			out = append(out, pkgver)
			continue
		}
		if e := b.tx.Entry(depName); e != nil && (e.Action == ActionRemove || e.Action == ActionHoldRemove) {
			continue
		}
		out = append(out, pkgver)
	}
	return out
}

// resolveRundeps applies the per-dependency procedure to every pattern
// in the record's run-depends, in order, recursing into staged
// candidates.
func (b *Builder) resolveRundeps(rec *pkgdb.PackageRecord, depth int) error {
	if depth >= MaxDepth {
		return &xerrors.DepthError{Pkgver: rec.Pkgver, Depth: MaxDepth}
	}
	for _, pattern := range rec.RunDepends {
		verbose.Tracef(depth, "%s requires dependency '%s'\n", rec.Pkgver, pattern)

		satisfied, configure, err := b.checkInstalled(pattern)
		if err != nil {
			return err
		}
		if configure != nil {
			verbose.Tracef(depth, "%s: unpacked, queueing configure\n", configure.Pkgver)
			b.tx.add(&Entry{Pkg: configure.Clone(), Action: ActionConfigure, Automatic: true})
			continue
		}
		if satisfied {
			continue
		}

		queued, err := b.checkQueued(pattern)
		if err != nil {
			return err
		}
		if queued {
			continue
		}

		cand, err := b.pool.FindVirtualPkg(pattern)
		if err != nil {
			return err
		}
		if cand == nil {
			if cand, err = b.pool.FindPkg(pattern); err != nil {
				return err
			}
		}
		if cand == nil {
			verbose.Tracef(depth, "'%s' not found in repository pool\n", pattern)
			if err := b.tx.recordMissing(pattern); err != nil {
				return err
			}
			continue
		}

		entry := b.stage(cand, true)
		verbose.Tracef(depth, "%s: added into the transaction (%s)\n", entry.Pkg.Pkgver, entry.Pkg.Repository)
		if err := b.resolveRundeps(entry.Pkg, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// checkInstalled is pass 1: an installed real (or virtual) package may
// already satisfy the pattern. It returns the record to configure when
// the match is only unpacked.
func (b *Builder) checkInstalled(pattern string) (satisfied bool, configure *pkgdb.PackageRecord, err error) {
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return false, nil, err
	}
	inst := b.db.FindInstalled(name)
	if inst == nil {
		inst = b.db.FindVirtual(name)
	}
	if inst == nil {
		return false, nil, nil
	}
	ok, err := inst.ProvidesVirtual(pattern)
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	if inst.Name != name {
		// A virtual provider that no longer advertises a satisfying
		// version does not satisfy the pattern by its own version.
		return false, nil, nil
	}
	ok, err = vercmp.Match(inst.Version, pattern)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	switch inst.State {
	case pkgdb.StateUnpacked:
		// Its dependencies are already recorded in the database; no
		// recursion needed.
		return false, inst, nil
	case pkgdb.StateInstalled:
		return true, nil, nil
	}
	return false, nil, nil
}

// checkQueued is pass 2: an entry already staged may satisfy the
// pattern. A queued entry over the same name that cannot satisfy a
// strictly greater requirement is a constraint conflict; the resolver
// never downgrades an existing entry.
func (b *Builder) checkQueued(pattern string) (bool, error) {
	e, err := b.tx.findQueued(pattern)
	if err != nil {
		return false, err
	}
	if e != nil {
		return true, nil
	}
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return false, err
	}
	prev := b.tx.Entry(name)
	if prev == nil || prev.Action == ActionRemove || prev.Action == ActionHoldRemove {
		return false, nil
	}
	_, required, has, err := vercmp.PatternVersion(pattern)
	if err != nil {
		return false, err
	}
	if has && vercmp.Cmp(required, prev.Pkg.Version) > 0 {
		return false, &xerrors.ConstraintError{Queued: prev.Pkg.Pkgver, Pattern: pattern}
	}
	// The queued entry wins over a looser or lesser requirement.
	return true, nil
}

// stage clones a pool candidate into the transaction, classifying its
// action from the database state of the same name.
func (b *Builder) stage(cand *pkgdb.PackageRecord, automatic bool) *Entry {
	clone := cand.Clone()
	action := ActionInstall
	if inst := b.db.FindInstalled(cand.Name); inst != nil && inst.State == pkgdb.StateInstalled {
		// An unpacked record stays an install: it completes the
		// broken installation.
		action = ActionUpdate
	}
	b.checkConflicts(clone)
	return b.tx.add(&Entry{Pkg: clone, Action: action, Automatic: automatic})
}

// checkConflicts records diagnostics for candidate conflicts against
// installed packages and queued entries.
func (b *Builder) checkConflicts(cand *pkgdb.PackageRecord) {
	for _, pattern := range cand.Conflicts {
		name, err := vercmp.PatternName(pattern)
		if err != nil {
			continue
		}
		if inst := b.db.FindInstalled(name); inst != nil {
			if ok, err := vercmp.Match(inst.Version, pattern); err == nil && ok {
				b.tx.addConflict(cand.Pkgver, inst.Pkgver, pattern)
			}
		}
		if e := b.tx.Entry(name); e != nil && e.Action != ActionRemove && e.Action != ActionHoldRemove {
			if ok, err := vercmp.Match(e.Pkg.Version, pattern); err == nil && ok {
				b.tx.addConflict(cand.Pkgver, e.Pkg.Pkgver, pattern)
			}
		}
	}
}
