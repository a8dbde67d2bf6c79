package transaction

import (
	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// Sort orders the queued entries so every entry's in-plan dependencies
// precede it. Install-side entries depend on the plan entries that
// satisfy their run-depends; removal entries depend on the removal of
// their in-plan dependents, so dependents are removed first. Entries
// with no in-plan dependencies keep their insertion order. A cycle
// fails the sort with a diagnostic naming it.
func (tx *Transaction) Sort() ([]*Entry, error) {
	const (
		white = iota // unvisited
		gray         // on the DFS stack
		black        // done
	)
	color := make(map[string]int, len(tx.order))
	sorted := make([]*Entry, 0, len(tx.order))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			e := tx.entries[name]
			cycle := []string{e.Pkg.Pkgver}
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append([]string{tx.entries[stack[i]].Pkg.Pkgver}, cycle...)
				if stack[i] == name {
					break
				}
			}
			return &xerrors.CycleError{Cycle: cycle}
		}
		color[name] = gray
		stack = append(stack, name)
		deps, err := tx.dependsOn(tx.entries[name])
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		sorted = append(sorted, tx.entries[name])
		return nil
	}

	for _, name := range tx.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// dependsOn returns the names of the plan entries the given entry must
// follow, in run-depends order.
func (tx *Transaction) dependsOn(e *Entry) ([]string, error) {
	if e.Action == ActionRemove || e.Action == ActionHoldRemove {
		return tx.removalDependents(e), nil
	}
	var deps []string
	seen := make(map[string]struct{})
	for _, pattern := range e.Pkg.RunDepends {
		for _, name := range tx.order {
			other := tx.entries[name]
			if other == e || other.Action == ActionRemove || other.Action == ActionHoldRemove {
				continue
			}
			ok, err := satisfies(other, pattern)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				deps = append(deps, name)
			}
			break
		}
	}
	return deps, nil
}

// removalDependents returns the queued removals whose package depends
// on e's package; those must be removed before e.
func (tx *Transaction) removalDependents(e *Entry) []string {
	var deps []string
	for _, name := range tx.order {
		other := tx.entries[name]
		if other == e || (other.Action != ActionRemove && other.Action != ActionHoldRemove) {
			continue
		}
		for _, pattern := range other.Pkg.RunDepends {
			ok, err := satisfies(e, pattern)
			if err != nil {
				continue
			}
			if ok {
				deps = append(deps, name)
				break
			}
		}
	}
	return deps
}

// satisfies reports whether a plan entry's package satisfies a
// dependency pattern, by name and version or as a virtual provider.
func satisfies(e *Entry, pattern string) (bool, error) {
	ok, err := e.Pkg.ProvidesVirtual(pattern)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return false, err
	}
	if name != e.Pkg.Name {
		return false, nil
	}
	return vercmp.Match(e.Pkg.Version, pattern)
}
