package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/vercmp"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

// Driver executes a sorted plan step by step. It owns the database for
// the duration of Execute and emits state events strictly in plan
// order; the callback returns before the next step begins.
type Driver struct {
	db     *pkgdb.DB
	worker Worker
	cb     StateCallback

	// planned names the removals staged in the running plan; the
	// PreCheck ignores dependents that are themselves going away.
	planned map[string]bool
}

// NewDriver returns a driver over the given database and collaborator.
// cb may be nil.
func NewDriver(db *pkgdb.DB, worker Worker, cb StateCallback) *Driver {
	return &Driver{db: db, worker: worker, cb: cb}
}

func (d *Driver) emit(ev StateEvent) {
	if d.cb != nil {
		d.cb(ev)
	}
}

// Execute runs the plan. Cancellation is cooperative and observed only
// at step boundaries. Blocked removals do not stop the loop; they are
// reported after every other entry has been attempted so the operator
// sees all blockers in one pass.
func (d *Driver) Execute(ctx context.Context, plan []*Entry, opts Options) (Stats, error) {
	var stats Stats
	var blocked *xerrors.RevdepsError
	var firstErr error

	d.planned = make(map[string]bool, len(plan))
	for _, e := range plan {
		if e.Action == ActionRemove || e.Action == ActionHoldRemove {
			d.planned[e.Pkg.Name] = true
		}
	}

	if !opts.DryRun {
		d.resumeHalfRemoved(plan)
	}

	for _, e := range plan {
		if err := ctx.Err(); err != nil {
			return stats, xerrors.ErrCancelled
		}
		switch e.Action {
		case ActionInstall, ActionUpdate:
			if err := d.runInstall(e, opts); err != nil {
				return stats, err
			}
			if e.Action == ActionInstall {
				stats.Installed++
			} else {
				stats.Updated++
			}
		case ActionConfigure:
			if err := d.runConfigure(e, opts); err != nil {
				return stats, err
			}
			stats.Configured++
		case ActionRemove, ActionHoldRemove:
			rb, err := d.runRemove(ctx, e, opts)
			if rb != nil && blocked == nil {
				blocked = rb
			}
			if err != nil {
				if errors.Is(err, xerrors.ErrCancelled) {
					return stats, err
				}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if rb == nil {
				stats.Removed++
			}
		}
	}

	if blocked != nil {
		return stats, blocked
	}
	return stats, firstErr
}

// runInstall drives one install or update entry through the
// download/verify/unpack/configure phases.
func (d *Driver) runInstall(e *Entry, opts Options) error {
	pkgver := e.Pkg.Pkgver
	state := StateInstall
	if e.Action == ActionUpdate {
		state = StateUpdate
	}
	d.emit(StateEvent{State: state, Arg: pkgver, Desc: fmt.Sprintf("%s `%s' ...", verb(e.Action), pkgver)})
	if opts.DryRun {
		return nil
	}

	d.emit(StateEvent{State: StateDownload, Arg: pkgver})
	if err := d.worker.Download(e.Pkg); err != nil {
		return err
	}
	d.emit(StateEvent{State: StateVerify, Arg: pkgver})
	if err := d.worker.Verify(e.Pkg); err != nil {
		return err
	}
	d.emit(StateEvent{State: StateUnpack, Arg: pkgver})
	if err := d.worker.Unpack(e.Pkg); err != nil {
		return err
	}

	rec := e.Pkg.Clone()
	rec.State = pkgdb.StateUnpacked
	rec.Automatic = e.Automatic
	d.db.Insert(rec)

	d.emit(StateEvent{State: StateConfigure, Arg: pkgver})
	if err := d.worker.Configure(e.Pkg); err != nil {
		return err
	}
	d.db.SetState(e.Pkg.Name, pkgdb.StateInstalled)
	return nil
}

// runConfigure completes an unpacked package.
func (d *Driver) runConfigure(e *Entry, opts Options) error {
	d.emit(StateEvent{State: StateConfigure, Arg: e.Pkg.Pkgver, Desc: fmt.Sprintf("Configuring `%s' ...", e.Pkg.Pkgver)})
	if opts.DryRun {
		return nil
	}
	if err := d.worker.Configure(e.Pkg); err != nil {
		return err
	}
	d.db.SetState(e.Pkg.Name, pkgdb.StateInstalled)
	return nil
}

// runRemove drives the removal state machine: PreCheck, Unlink,
// Metadata. It returns a RevdepsError when the PreCheck blocks the
// removal, and an execution error for file-level failures worth the
// exit code.
func (d *Driver) runRemove(ctx context.Context, e *Entry, opts Options) (*xerrors.RevdepsError, error) {
	name := e.Pkg.Name
	pkgver := e.Pkg.Pkgver

	// PreCheck: live reverse dependents block the removal unless
	// forced. Dependents queued for removal in this plan don't count.
	if revdeps := d.liveRevdeps(name, e); len(revdeps) > 0 && !opts.ForceRevdeps {
		err := &xerrors.RevdepsError{Pkgname: name, Revdeps: revdeps}
		d.emit(StateEvent{
			State: StateRemoveFail,
			Arg:   pkgver,
			Desc:  fmt.Sprintf("%s: cannot remove, %d package(s) depend on it: %s", pkgver, len(revdeps), strings.Join(revdeps, " ")),
			Err:   err,
		})
		return err, nil
	}

	d.emit(StateEvent{State: StateRemove, Arg: pkgver, Desc: fmt.Sprintf("Removing `%s' ...", pkgver)})
	if opts.DryRun {
		d.emit(StateEvent{State: StateRemoveDone, Arg: pkgver, Desc: fmt.Sprintf("Removed `%s' successfully.", pkgver)})
		return nil, nil
	}

	// Unlink phase: regular files first, directories last so rmdir
	// sees them empty. A non-empty directory is left in place and is
	// not an error; any other failure is reported and the remaining
	// files are still attempted.
	var firstErr error
	for _, f := range unlinkOrder(e.Pkg.Files) {
		err := d.worker.RemoveFile(e.Pkg, f, !opts.ForceRemoveFiles)
		if err == nil {
			if opts.Verbose {
				d.emit(StateEvent{State: StateRemoveFile, Arg: f.Path, Desc: fmt.Sprintf("Removed file `%s'", f.Path)})
			}
			continue
		}
		if f.Dir && isNotEmpty(err) {
			verbose.Debugf("%s: directory %s not empty, keeping\n", pkgver, f.Path)
			continue
		}
		state := StateRemoveFileFail
		var hashErr *xerrors.HashError
		if errors.As(err, &hashErr) {
			state = StateRemoveFileHashFail
		}
		d.emit(StateEvent{State: state, Arg: f.Path, Desc: fmt.Sprintf("failed to remove `%s': %v", f.Path, err), Err: err})
		if firstErr == nil {
			firstErr = err
		}
	}

	// The database marks the half-removed state before metadata goes
	// away, so an interruption here is recoverable on the next run.
	d.db.SetState(name, pkgdb.StateHalfRemoved)
	if err := ctx.Err(); err != nil {
		return nil, xerrors.ErrCancelled
	}

	// Metadata phase.
	d.db.Remove(name)
	d.emit(StateEvent{State: StateRemoveDone, Arg: pkgver, Desc: fmt.Sprintf("Removed `%s' successfully.", pkgver)})
	return nil, firstErr
}

// resumeHalfRemoved re-runs the metadata phase for records a previous
// interrupted run left half-removed, unless this plan stages them
// again.
func (d *Driver) resumeHalfRemoved(plan []*Entry) {
	planned := make(map[string]struct{}, len(plan))
	for _, e := range plan {
		planned[e.Pkg.Name] = struct{}{}
	}
	for _, name := range d.db.Names() {
		if _, ok := planned[name]; ok {
			continue
		}
		rec := d.db.FindInstalled(name)
		if rec == nil || rec.State != pkgdb.StateHalfRemoved {
			continue
		}
		pkgver := rec.Pkgver
		d.db.Remove(name)
		d.emit(StateEvent{State: StateRemoveDone, Arg: pkgver, Desc: fmt.Sprintf("Removed `%s' successfully.", pkgver)})
	}
}

// liveRevdeps returns reverse dependents of name that this plan does
// not itself remove.
func (d *Driver) liveRevdeps(name string, self *Entry) []string {
	var out []string
	for _, pkgver := range d.db.RevdepsOf(name) {
		depName, _, err := vercmp.SplitPkgver(pkgver)
		if err == nil && depName == self.Pkg.Name {
			continue
		}
		if err == nil && d.planned[depName] {
			continue
		}
		out = append(out, pkgver)
	}
	return out
}

func unlinkOrder(files []pkgdb.FileEntry) []pkgdb.FileEntry {
	out := make([]pkgdb.FileEntry, 0, len(files))
	for _, f := range files {
		if !f.Dir {
			out = append(out, f)
		}
	}
	// Directories in reverse manifest order, deepest first.
	for i := len(files) - 1; i >= 0; i-- {
		if files[i].Dir {
			out = append(out, files[i])
		}
	}
	return out
}

func isNotEmpty(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENOTEMPTY
	}
	return false
}

func verb(a Action) string {
	switch a {
	case ActionInstall:
		return "Installing"
	case ActionUpdate:
		return "Updating"
	case ActionConfigure:
		return "Configuring"
	}
	return "Removing"
}
