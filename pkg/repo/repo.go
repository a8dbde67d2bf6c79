// Package repo implements repository indices and the ordered
// repository pool the resolver queries for candidates.
package repo

import (
	"encoding/json"
	"os"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"

	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// Repository is one repository index: an ordered set of package
// records keyed by name, plus the origin tag stamped on every record
// it returns.
type Repository struct {
	// URI identifies the repository; it becomes the Repository field
	// of candidate records.
	URI string

	records map[string]*pkgdb.PackageRecord
	order   []string
}

// NewRepository returns an empty repository with the given URI tag.
func NewRepository(uri string) *Repository {
	return &Repository{
		URI:     uri,
		records: make(map[string]*pkgdb.PackageRecord),
	}
}

// Add registers a record in the index, stamping the repository tag.
func (r *Repository) Add(rec *pkgdb.PackageRecord) {
	rec.Repository = r.URI
	if _, exists := r.records[rec.Name]; !exists {
		r.order = append(r.order, rec.Name)
	}
	r.records[rec.Name] = rec
}

// FindPkg returns the record whose name matches the pattern's name and
// whose version satisfies the pattern, or nil.
func (r *Repository) FindPkg(pattern string) (*pkgdb.PackageRecord, error) {
	name, err := vercmp.PatternName(pattern)
	if err != nil {
		return nil, err
	}
	rec := r.records[name]
	if rec == nil {
		return nil, nil
	}
	ok, err := vercmp.Match(rec.Version, pattern)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// FindVirtualPkg returns the first record in index order that provides
// the pattern as a virtual package, or nil.
func (r *Repository) FindVirtualPkg(pattern string) (*pkgdb.PackageRecord, error) {
	for _, name := range r.order {
		ok, err := r.records[name].ProvidesVirtual(pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			return r.records[name], nil
		}
	}
	return nil, nil
}

// LoadRepository reads a repository index file (an ordered dictionary
// of records keyed by name, same layout as the pkgdb).
func LoadRepository(uri, path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading repository index %s", path)
	}
	dict := orderedmap.New()
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, errors.Wrapf(err, "parsing repository index %s", path)
	}
	r := NewRepository(uri)
	for _, name := range dict.Keys() {
		raw, _ := dict.Get(name)
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding index entry %s", name)
		}
		rec := &pkgdb.PackageRecord{}
		if err := json.Unmarshal(buf, rec); err != nil {
			return nil, errors.Wrapf(err, "decoding index entry %s", name)
		}
		if rec.Name == "" {
			rec.Name = name
		}
		rec.State = pkgdb.StateNotInstalled
		r.Add(rec)
	}
	return r, nil
}
