package pkgdb

import (
	"sort"

	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// DB is the in-memory view of the installed set. It is loaded once per
// transaction; the driver is its only mutator during execution.
type DB struct {
	records map[string]*PackageRecord

	// order preserves on-disk key order so a load/save round-trip is
	// byte-identical; names inserted at runtime append at the end.
	order []string

	// byVirtual maps a virtual package name to the real names
	// providing it, each with its advertised provider pkgver.
	byVirtual map[string][]providerRef

	// revdeps maps an installed name to the set of installed names
	// whose run-depends name it. Recomputed on load, updated
	// incrementally on every mutation.
	revdeps map[string]map[string]struct{}
}

type providerRef struct {
	name     string
	provides string
}

// New returns an empty database.
func New() *DB {
	return &DB{
		records:   make(map[string]*PackageRecord),
		byVirtual: make(map[string][]providerRef),
		revdeps:   make(map[string]map[string]struct{}),
	}
}

// FindInstalled returns the record for a real package name, or nil if
// the name is not in the database.
func (db *DB) FindInstalled(name string) *PackageRecord {
	return db.records[name]
}

// FindVirtual returns an installed record whose provides list contains
// a provider with the given virtual name. When several providers are
// installed the first registered one wins: Load registers providers in
// database order, and Insert of an existing record registers it again
// after the others.
func (db *DB) FindVirtual(name string) *PackageRecord {
	refs := db.byVirtual[name]
	if len(refs) == 0 {
		return nil
	}
	return db.records[refs[0].name]
}

// StateOf returns the state of a record, or StateNotInstalled when the
// name is unknown.
func (db *DB) StateOf(name string) PackageState {
	if r := db.records[name]; r != nil {
		return r.State
	}
	return StateNotInstalled
}

// RevdepsOf returns the pkgvers of every installed package that lists
// a pattern naming the given package in its run-depends, sorted for
// determinism. A pattern on a virtual name counts only for the first
// registered provider of that name.
func (db *DB) RevdepsOf(name string) []string {
	set := db.revdeps[name]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for dep := range set {
		if r := db.records[dep]; r != nil {
			out = append(out, r.Pkgver)
		}
	}
	sort.Strings(out)
	return out
}

// Names returns every installed package name in database order.
func (db *DB) Names() []string {
	return append([]string(nil), db.order...)
}

// Len returns the number of records.
func (db *DB) Len() int {
	return len(db.records)
}

// SetState updates the state of an existing record. Unknown names are
// ignored.
func (db *DB) SetState(name string, state PackageState) {
	if r := db.records[name]; r != nil {
		r.State = state
	}
}

// Insert adds or replaces a record and refreshes the indexes it
// touches.
func (db *DB) Insert(rec *PackageRecord) {
	if _, exists := db.records[rec.Name]; !exists {
		db.order = append(db.order, rec.Name)
	} else {
		db.unindex(rec.Name)
	}
	db.records[rec.Name] = rec
	db.index(rec)
}

// Remove deletes a record and every index entry referring to it.
func (db *DB) Remove(name string) {
	rec := db.records[name]
	if rec == nil {
		return
	}
	db.unindex(name)
	delete(db.records, name)
	for i, n := range db.order {
		if n == name {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
	delete(db.revdeps, name)
}

// index registers a record's provides and run-depends edges.
func (db *DB) index(rec *PackageRecord) {
	for _, prov := range rec.Provides {
		vname, _, err := vercmp.SplitPkgver(prov)
		if err != nil {
			vname = prov
		}
		db.byVirtual[vname] = append(db.byVirtual[vname], providerRef{name: rec.Name, provides: prov})
	}
	for _, pattern := range rec.RunDepends {
		depname, err := vercmp.PatternName(pattern)
		if err != nil {
			continue
		}
		target := depname
		if _, ok := db.records[target]; !ok {
			if refs := db.byVirtual[depname]; len(refs) > 0 {
				target = refs[0].name
			}
		}
		set := db.revdeps[target]
		if set == nil {
			set = make(map[string]struct{})
			db.revdeps[target] = set
		}
		set[rec.Name] = struct{}{}
	}
}

// unindex drops every index edge contributed by a record.
func (db *DB) unindex(name string) {
	rec := db.records[name]
	if rec == nil {
		return
	}
	for _, prov := range rec.Provides {
		vname, _, err := vercmp.SplitPkgver(prov)
		if err != nil {
			vname = prov
		}
		refs := db.byVirtual[vname]
		for i, ref := range refs {
			if ref.name == name {
				refs = append(refs[:i], refs[i+1:]...)
				break
			}
		}
		if len(refs) == 0 {
			delete(db.byVirtual, vname)
		} else {
			db.byVirtual[vname] = refs
		}
	}
	for target, set := range db.revdeps {
		delete(set, name)
		if len(set) == 0 {
			delete(db.revdeps, target)
		}
	}
}

// Reindex rebuilds the virtual and reverse-dependency indexes from
// scratch. Load uses it after all records are in place so run-depends
// on virtual names resolve to their providers.
func (db *DB) Reindex() {
	db.byVirtual = make(map[string][]providerRef)
	db.revdeps = make(map[string]map[string]struct{})
	for _, name := range db.order {
		rec := db.records[name]
		for _, prov := range rec.Provides {
			vname, _, err := vercmp.SplitPkgver(prov)
			if err != nil {
				vname = prov
			}
			db.byVirtual[vname] = append(db.byVirtual[vname], providerRef{name: rec.Name, provides: prov})
		}
	}
	for _, name := range db.order {
		rec := db.records[name]
		for _, pattern := range rec.RunDepends {
			depname, err := vercmp.PatternName(pattern)
			if err != nil {
				continue
			}
			target := depname
			if _, ok := db.records[target]; !ok {
				if refs := db.byVirtual[depname]; len(refs) > 0 {
					target = refs[0].name
				}
			}
			set := db.revdeps[target]
			if set == nil {
				set = make(map[string]struct{})
				db.revdeps[target] = set
			}
			set[name] = struct{}{}
		}
	}
}
