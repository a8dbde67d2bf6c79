package xpkg

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/ajxudir/xpkg/pkg/vercmp"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

// CleanCache removes cached package archives that are no longer the
// best candidate in the repository pool. Archives whose package is
// unknown to every repository are kept. With dryRun nothing is
// unlinked; obsolete entries are only reported.
func (h *Handle) CleanCache(dryRun bool) error {
	entries, err := os.ReadDir(h.cfg.Cachedir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading cachedir %s", h.cfg.Cachedir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".xpkg" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, fname := range names {
		pkgver := fname[:len(fname)-len(".xpkg")]
		name, version, err := vercmp.SplitPkgver(pkgver)
		if err != nil {
			continue
		}
		best, err := h.pool.FindBestPkg(name)
		if err != nil {
			return err
		}
		if best == nil || vercmp.Cmp(best.Version, version) <= 0 {
			continue
		}
		path := filepath.Join(h.cfg.Cachedir, fname)
		verbose.Printf("Removing obsolete cached package `%s' ...\n", pkgver)
		if dryRun {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing cached package %s", path)
		}
	}
	return nil
}
