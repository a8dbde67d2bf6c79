package transaction

import (
	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/vercmp"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

// AutoremovePkgs stages removals for every orphan: an installed
// package marked automatic whose reverse-dependency set is empty once
// all queued removals are applied, iterated to a fixed point so chains
// of automatic packages collapse together. Returns ErrNoOrphans when
// nothing qualifies.
func (b *Builder) AutoremovePkgs() error {
	removing := b.removalSet()
	selected := b.orphanFixpoint(removing)
	if len(selected) == 0 {
		return xerrors.ErrNoOrphans
	}
	for _, name := range selected {
		if b.tx.Entry(name) != nil {
			continue
		}
		rec := b.db.FindInstalled(name)
		verbose.Debugf("orphan: staging removal of %s\n", rec.Pkgver)
		b.tx.add(&Entry{Pkg: rec.Clone(), Action: ActionRemove, Automatic: true})
	}
	return nil
}

// collectAutoDeps returns the installed packages whose only reason to
// be installed is "automatic and transitively required by rec",
// honoring removals already queued in the transaction.
func (b *Builder) collectAutoDeps(rec *pkgdb.PackageRecord) []*pkgdb.PackageRecord {
	removing := b.removalSet()
	removing[rec.Name] = struct{}{}

	// Transitive dependency closure of rec, resolved through the
	// installed database.
	closure := make(map[string]struct{})
	queue := []*pkgdb.PackageRecord{rec}
	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, pattern := range cur.RunDepends {
			dep := b.installedFor(pattern)
			if dep == nil {
				continue
			}
			if _, seen := closure[dep.Name]; seen {
				continue
			}
			closure[dep.Name] = struct{}{}
			order = append(order, dep.Name)
			queue = append(queue, dep)
		}
	}

	// Keep only automatic packages every dependent of which is either
	// being removed or selected itself; iterate to a fixed point.
	selected := make(map[string]struct{})
	for changed := true; changed; {
		changed = false
		for _, name := range order {
			if _, done := selected[name]; done {
				continue
			}
			dep := b.db.FindInstalled(name)
			if dep == nil || !dep.Automatic {
				continue
			}
			if b.allDependentsCovered(name, removing, selected) {
				selected[name] = struct{}{}
				changed = true
			}
		}
	}

	var out []*pkgdb.PackageRecord
	for _, name := range order {
		if _, ok := selected[name]; ok {
			out = append(out, b.db.FindInstalled(name))
		}
	}
	return out
}

// orphanFixpoint returns every automatic package whose dependents are
// all covered by the removal set or by earlier orphan selections, in
// the order they were selected: each pass walks database order, so a
// dependent selected in an earlier pass precedes its dependency.
func (b *Builder) orphanFixpoint(removing map[string]struct{}) []string {
	selected := make(map[string]struct{})
	var order []string
	for changed := true; changed; {
		changed = false
		for _, name := range b.db.Names() {
			if _, done := selected[name]; done {
				continue
			}
			if _, gone := removing[name]; gone {
				continue
			}
			rec := b.db.FindInstalled(name)
			if rec == nil || !rec.Automatic {
				continue
			}
			if b.allDependentsCovered(name, removing, selected) {
				selected[name] = struct{}{}
				order = append(order, name)
				changed = true
			}
		}
	}
	return order
}

// allDependentsCovered reports whether every installed reverse
// dependent of name is in the removal set or already selected.
func (b *Builder) allDependentsCovered(name string, removing, selected map[string]struct{}) bool {
	for _, pkgver := range b.db.RevdepsOf(name) {
		depName, _, err := vercmp.SplitPkgver(pkgver)
		if err != nil {
			return false
		}
		if _, ok := removing[depName]; ok {
			continue
		}
		if _, ok := selected[depName]; ok {
			continue
		}
		return false
	}
	return true
}

// removalSet returns the names already queued for removal.
func (b *Builder) removalSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, e := range b.tx.Entries() {
		if e.Action == ActionRemove || e.Action == ActionHoldRemove {
			set[e.Pkg.Name] = struct{}{}
		}
	}
	return set
}

// installedFor resolves a dependency pattern to the installed package
// satisfying it, real name first, then virtual providers.
func (b *Builder) installedFor(pattern string) *pkgdb.PackageRecord {
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return nil
	}
	if rec := b.db.FindInstalled(name); rec != nil {
		return rec
	}
	return b.db.FindVirtual(name)
}
