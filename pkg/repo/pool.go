package repo

import (
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/vercmp"
)

// Pool is the ordered list of repositories in user-declared priority
// order. Lookups iterate in order and return the first hit; FindBestPkg
// instead scans every repository and keeps the highest version.
type Pool struct {
	repos []*Repository
}

// NewPool returns a pool over the given repositories, highest priority
// first.
func NewPool(repos ...*Repository) *Pool {
	return &Pool{repos: repos}
}

// Append adds a repository at the lowest priority position.
func (p *Pool) Append(r *Repository) {
	p.repos = append(p.repos, r)
}

// Len returns the number of repositories in the pool.
func (p *Pool) Len() int {
	return len(p.repos)
}

// FindPkg returns the first repository record matching the pattern, in
// pool order.
func (p *Pool) FindPkg(pattern string) (*pkgdb.PackageRecord, error) {
	for _, r := range p.repos {
		rec, err := r.FindPkg(pattern)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// FindVirtualPkg returns the first repository record providing the
// pattern as a virtual package, in pool order.
func (p *Pool) FindVirtualPkg(pattern string) (*pkgdb.PackageRecord, error) {
	for _, r := range p.repos {
		rec, err := r.FindVirtualPkg(pattern)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// FindBestPkg scans every repository and returns the matching record
// with the highest version. Ties keep the earlier repository.
func (p *Pool) FindBestPkg(pattern string) (*pkgdb.PackageRecord, error) {
	var best *pkgdb.PackageRecord
	for _, r := range p.repos {
		rec, err := r.FindPkg(pattern)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		if best == nil || vercmp.Cmp(rec.Version, best.Version) > 0 {
			best = rec
		}
	}
	return best, nil
}
