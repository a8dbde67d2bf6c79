// Package pkgdb implements the installed-package database: lookup by
// real and virtual name, package states, the reverse-dependency index,
// and the on-disk serialization the transaction driver mutates.
package pkgdb

import (
	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// PackageRecord describes one package. Records minted by the database
// or a repository index are treated as immutable; the transaction owns
// clones.
type PackageRecord struct {
	// Name is the package identifier.
	Name string `json:"pkgname"`

	// Version is the version token, comparable through vercmp.
	Version string `json:"version"`

	// Pkgver is the combined "name-version" string.
	Pkgver string `json:"pkgver"`

	// RunDepends holds the run-time dependency patterns, in order.
	RunDepends []string `json:"run_depends,omitempty"`

	// Provides holds virtual package patterns this package satisfies,
	// e.g. "awk-1".
	Provides []string `json:"provides,omitempty"`

	// Replaces holds patterns of packages this one replaces.
	Replaces []string `json:"replaces,omitempty"`

	// Conflicts holds patterns this package cannot coexist with.
	Conflicts []string `json:"conflicts,omitempty"`

	// Repository is the origin repository tag; empty for records that
	// only exist installed.
	Repository string `json:"repository,omitempty"`

	// Files lists the package's installed files with their recorded
	// hashes; the removal collaborator consumes it.
	Files []FileEntry `json:"files,omitempty"`

	// State is the installation state of the record.
	State PackageState `json:"state"`

	// Automatic marks packages installed as dependencies rather than
	// by explicit request; orphan collection keys off it.
	Automatic bool `json:"automatic-install,omitempty"`

	// Metadata carries opaque keys the driver passes through
	// unchanged.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// FileEntry is one manifest row: a path, its recorded hash (empty for
// directories), and whether the path is a directory.
type FileEntry struct {
	Path string `json:"file"`
	Hash string `json:"sha256,omitempty"`
	Dir  bool   `json:"dir,omitempty"`
}

// Clone returns a deep copy of the record. The transaction builder
// clones candidates before tagging them so pool records stay pristine.
func (r *PackageRecord) Clone() *PackageRecord {
	c := *r
	c.RunDepends = append([]string(nil), r.RunDepends...)
	c.Provides = append([]string(nil), r.Provides...)
	c.Replaces = append([]string(nil), r.Replaces...)
	c.Conflicts = append([]string(nil), r.Conflicts...)
	c.Files = append([]FileEntry(nil), r.Files...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ProvidesVirtual reports whether the record advertises a provider
// satisfying the given pattern. Provider entries carry their own
// version ("awk-1"); a pattern with a version constraint is matched
// against it.
func (r *PackageRecord) ProvidesVirtual(pattern string) (bool, error) {
	pname, err := vercmp.PatternName(pattern)
	if err != nil {
		return false, err
	}
	for _, prov := range r.Provides {
		vname, vver, err := vercmp.SplitPkgver(prov)
		if err != nil {
			// Providers without a version satisfy any constraint on
			// the name.
			if prov == pname {
				return true, nil
			}
			continue
		}
		if vname != pname {
			continue
		}
		ok, err := vercmp.Match(vver, pattern)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
