package xpkg

import (
	"context"
	"fmt"
	"strings"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/pkgdb"
	"github.com/ajxudir/xpkg/pkg/repo"
	"github.com/ajxudir/xpkg/pkg/transaction"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

// Handle is the context value threaded through every API call. One
// handle owns one database view and one transaction under
// construction; there is no process-wide state.
type Handle struct {
	cfg     Config
	db      *pkgdb.DB
	pool    *repo.Pool
	builder *transaction.Builder
	worker  transaction.Worker
	cb      transaction.StateCallback
	lock    *pkgdb.LockGuard
	slog    *syslogSink

	// Confirm is consulted before a non-dry-run execution unless the
	// caller assumes yes. Nil means no confirmation step.
	Confirm func(plan []*transaction.Entry) bool
}

// Init creates a handle: merges configuration drop-ins, loads the
// package database and every configured repository index, and prepares
// an empty transaction.
func Init(cfg Config) (*Handle, error) {
	cfg.applyDefaults()
	if err := cfg.loadConfFiles(); err != nil {
		return nil, err
	}
	cfg.applyLateDefaults()

	if cfg.Flags.Has(FlagDebug) {
		verbose.EnableDebug()
	} else if cfg.Flags.Has(FlagVerbose) {
		verbose.Enable()
	}

	db, err := pkgdb.Load(cfg.Rootdir)
	if err != nil {
		return nil, err
	}

	pool := repo.NewPool()
	for _, path := range cfg.Repositories {
		r, err := repo.LoadRepository(path, path)
		if err != nil {
			return nil, err
		}
		pool.Append(r)
	}

	h := &Handle{
		cfg:     cfg,
		db:      db,
		pool:    pool,
		builder: transaction.NewBuilder(db, pool),
		worker:  &fsWorker{rootdir: cfg.Rootdir},
	}
	if syslogEnabled(cfg) {
		h.slog = newSyslogSink()
	}
	return h, nil
}

func syslogEnabled(cfg Config) bool {
	if cfg.Flags.Has(FlagDisableSyslog) {
		return false
	}
	if cfg.Syslog != nil {
		return *cfg.Syslog
	}
	return true
}

// Close releases the lock if held and shuts down the syslog sink.
func (h *Handle) Close() {
	h.PkgdbUnlock()
	h.slog.Close()
}

// Config returns the effective configuration.
func (h *Handle) Config() Config { return h.cfg }

// DB returns the handle's database view.
func (h *Handle) DB() *pkgdb.DB { return h.db }

// Pool returns the repository pool.
func (h *Handle) Pool() *repo.Pool { return h.pool }

// SetWorker injects the collaborator performing filesystem work.
func (h *Handle) SetWorker(w transaction.Worker) { h.worker = w }

// RegisterStateCb registers the callback receiving driver events.
func (h *Handle) RegisterStateCb(cb transaction.StateCallback) { h.cb = cb }

// PkgdbLock takes the exclusive database lock. Dry-run callers never
// call this.
func (h *Handle) PkgdbLock() error {
	if h.lock != nil {
		return nil
	}
	guard, err := pkgdb.AcquireLock(h.cfg.Rootdir)
	if err != nil {
		return err
	}
	h.lock = guard
	return nil
}

// PkgdbUnlock releases the database lock if held.
func (h *Handle) PkgdbUnlock() {
	h.lock.Release()
	h.lock = nil
}

// Transaction returns the transaction under construction.
func (h *Handle) Transaction() *transaction.Transaction {
	return h.builder.Transaction()
}

// RevdepsOf returns the pkgvers of installed packages requiring the
// given package.
func (h *Handle) RevdepsOf(name string) []string {
	return h.db.RevdepsOf(name)
}

// TransactionInstallPkg stages an install/update request for a
// dependency pattern.
func (h *Handle) TransactionInstallPkg(pattern string, automatic bool) error {
	return h.builder.InstallPkg(pattern, automatic)
}

// TransactionRemovePkg stages a removal. The RevdepsError return
// leaves the entry held in the transaction; the caller decides whether
// to force execution.
func (h *Handle) TransactionRemovePkg(name string, recursive bool) error {
	return h.builder.RemovePkg(name, recursive)
}

// TransactionAutoremovePkgs stages removal of every package orphan.
func (h *Handle) TransactionAutoremovePkgs() error {
	return h.builder.AutoremovePkgs()
}

// ExecTransaction sorts and executes the staged transaction. The
// database is persisted after execution unless this is a dry run, even
// when a step failed, so partial progress is never lost.
func (h *Handle) ExecTransaction(ctx context.Context, opts transaction.Options) (transaction.Stats, error) {
	var stats transaction.Stats

	tx := h.builder.Transaction()
	if missing := tx.MissingDeps; len(missing) > 0 {
		return stats, fmt.Errorf("cannot continue due to unresolved dependencies: %s", strings.Join(missing, " "))
	}
	plan, err := tx.Sort()
	if err != nil {
		return stats, err
	}
	if len(plan) == 0 {
		return stats, nil
	}

	if !opts.DryRun && !opts.AssumeYes && h.Confirm != nil && !h.Confirm(plan) {
		return stats, xerrors.ErrCancelled
	}

	driver := transaction.NewDriver(h.db, h.worker, h.stateCb())
	stats, execErr := driver.Execute(ctx, plan, opts)

	if !opts.DryRun {
		if err := h.db.Save(h.cfg.Rootdir); err != nil {
			if execErr == nil {
				execErr = err
			}
		}
	}
	return stats, execErr
}

// stateCb wraps the registered callback with the syslog mirror for
// removal outcomes.
func (h *Handle) stateCb() transaction.StateCallback {
	return func(ev transaction.StateEvent) {
		switch ev.State {
		case transaction.StateRemoveDone:
			h.slog.Noticef("Removed `%s' successfully (rootdir: %s).", ev.Arg, h.cfg.Rootdir)
		case transaction.StateRemoveFail, transaction.StateRemoveFileFail,
			transaction.StateRemoveFileHashFail, transaction.StateRemoveFileObsoleteFail:
			h.slog.Errf("%s", ev.Desc)
		}
		if h.cb != nil {
			h.cb(ev)
		}
	}
}
