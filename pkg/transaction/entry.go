// Package transaction implements the transaction planner: the
// dependency resolver that accumulates unsorted entries, the
// topological sorter that turns them into an executable plan, and the
// driver that executes the plan against the package database.
package transaction

import (
	"fmt"

	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// Action is the operation a transaction entry performs.
type Action string

// Entry actions. HoldRemove is a removal staged while live reverse
// dependents still exist; the driver only proceeds with it under
// force-revdeps and reports it blocked otherwise.
const (
	ActionInstall    Action = "install"
	ActionUpdate     Action = "update"
	ActionConfigure  Action = "configure"
	ActionRemove     Action = "remove"
	ActionHoldRemove Action = "hold-remove"
)

// Entry is one plan row: a target package plus the action and flags.
type Entry struct {
	// Pkg is the target record; the transaction owns this clone.
	Pkg *pkgdb.PackageRecord

	// Action is the operation to perform.
	Action Action

	// Automatic marks entries staged as dependencies of a request
	// rather than requested directly.
	Automatic bool

	// Forced marks entries the caller insisted on despite a failed
	// precondition.
	Forced bool
}

// Transaction owns the resolver's three collections. Entries are keyed
// by package name (at most one per name); missing dependencies keep at
// most one pattern per name.
type Transaction struct {
	entries map[string]*Entry
	order   []string

	// MissingDeps is the ordered list of unsatisfiable patterns.
	MissingDeps []string

	// Conflicts collects human-readable conflict diagnostics.
	Conflicts []string
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction {
	return &Transaction{entries: make(map[string]*Entry)}
}

// Entry returns the queued entry for a package name, or nil.
func (tx *Transaction) Entry(name string) *Entry {
	return tx.entries[name]
}

// Entries returns the queued entries in insertion order.
func (tx *Transaction) Entries() []*Entry {
	out := make([]*Entry, 0, len(tx.order))
	for _, name := range tx.order {
		out = append(out, tx.entries[name])
	}
	return out
}

// Len returns the number of queued entries.
func (tx *Transaction) Len() int {
	return len(tx.order)
}

// add queues an entry, superseding any earlier entry with the same
// name, and drops the name from the missing list so the two
// collections stay disjoint.
func (tx *Transaction) add(e *Entry) *Entry {
	name := e.Pkg.Name
	if _, exists := tx.entries[name]; !exists {
		tx.order = append(tx.order, name)
	}
	tx.entries[name] = e
	tx.dropMissing(name)
	return e
}

// remove deletes a queued entry.
func (tx *Transaction) remove(name string) {
	if _, exists := tx.entries[name]; !exists {
		return
	}
	delete(tx.entries, name)
	for i, n := range tx.order {
		if n == name {
			tx.order = append(tx.order[:i], tx.order[i+1:]...)
			break
		}
	}
}

// findQueued returns the queued entry satisfying a dependency pattern:
// first an entry providing it virtually, then an entry whose name and
// version match it.
func (tx *Transaction) findQueued(pattern string) (*Entry, error) {
	for _, name := range tx.order {
		e := tx.entries[name]
		if e.Action == ActionRemove || e.Action == ActionHoldRemove {
			continue
		}
		ok, err := e.Pkg.ProvidesVirtual(pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
	}
	pname, err := vercmp.PatternName(pattern)
	if err != nil {
		return nil, err
	}
	e := tx.entries[pname]
	if e == nil || e.Action == ActionRemove || e.Action == ActionHoldRemove {
		return nil, nil
	}
	ok, err := vercmp.Match(e.Pkg.Version, pattern)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return e, nil
}

// recordMissing inserts a pattern into the missing list, keeping at
// most one entry per dependency name. A stricter (greater) required
// version replaces the recorded one; equal versions collapse; lesser
// versions are dropped.
func (tx *Transaction) recordMissing(pattern string) error {
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return err
	}
	_, newVer, newHas, err := vercmp.PatternVersion(pattern)
	if err != nil {
		return err
	}
	for i, cur := range tx.MissingDeps {
		curName, err := vercmp.PatternName(cur)
		if err != nil {
			return err
		}
		if curName != name {
			continue
		}
		_, curVer, curHas, err := vercmp.PatternVersion(cur)
		if err != nil {
			return err
		}
		// Replace only when the new requirement is strictly greater.
		if newHas && (!curHas || vercmp.Cmp(newVer, curVer) > 0) {
			tx.MissingDeps[i] = pattern
		}
		return nil
	}
	tx.MissingDeps = append(tx.MissingDeps, pattern)
	return nil
}

// dropMissing removes any missing entry naming the given package.
func (tx *Transaction) dropMissing(name string) {
	for i, cur := range tx.MissingDeps {
		curName, err := vercmp.PatternName(cur)
		if err != nil {
			continue
		}
		if curName == name {
			tx.MissingDeps = append(tx.MissingDeps[:i], tx.MissingDeps[i+1:]...)
			return
		}
	}
}

// addConflict records a conflict diagnostic.
func (tx *Transaction) addConflict(pkgver, otherPkgver, pattern string) {
	tx.Conflicts = append(tx.Conflicts,
		fmt.Sprintf("%s conflicts with %s (matched by %s)", pkgver, otherPkgver, pattern))
}

// snapshot captures the queued entry names so a failed root can be
// rolled back before the next root is attempted.
func (tx *Transaction) snapshot() map[string]struct{} {
	snap := make(map[string]struct{}, len(tx.order))
	for _, name := range tx.order {
		snap[name] = struct{}{}
	}
	return snap
}

// rollback removes every entry added after the snapshot was taken.
func (tx *Transaction) rollback(snap map[string]struct{}) {
	for _, name := range append([]string(nil), tx.order...) {
		if _, ok := snap[name]; !ok {
			tx.remove(name)
		}
	}
}
