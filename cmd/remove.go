package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/output"
	"github.com/ajxudir/xpkg/pkg/transaction"
	"github.com/ajxudir/xpkg/pkg/xpkg"
)

var removeOpts struct {
	config       string
	cachedir     string
	rootdir      string
	debug        bool
	forceRevdeps bool
	force        bool
	dryRun       bool
	cleanCache   bool
	orphans      bool
	recursive    bool
	verbose      bool
	yes          bool
	version      bool
}

var removeCmd = &cobra.Command{
	Use:   "remove [OPTIONS] [PKGNAME...]",
	Short: "Remove installed packages",
	Long: `Remove installed packages, their orphaned dependencies, and
obsolete cached packages.`,
	RunE: runRemove,
}

func init() {
	f := removeCmd.Flags()
	f.StringVarP(&removeOpts.config, "config", "C", "", "Full path to configuration file")
	f.StringVarP(&removeOpts.cachedir, "cachedir", "c", "", "Full path to cachedir")
	f.BoolVarP(&removeOpts.debug, "debug", "d", false, "Debug mode shown to stderr")
	f.BoolVarP(&removeOpts.forceRevdeps, "force-revdeps", "F", false, "Force package removal even with revdeps")
	f.BoolVarP(&removeOpts.force, "force", "f", false, "Force package files removal")
	f.BoolVarP(&removeOpts.dryRun, "dry-run", "n", false, "Dry-run mode")
	f.BoolVarP(&removeOpts.cleanCache, "clean-cache", "O", false, "Remove obsolete packages in cachedir")
	f.BoolVarP(&removeOpts.orphans, "remove-orphans", "o", false, "Remove package orphans")
	f.BoolVarP(&removeOpts.recursive, "recursive", "R", false, "Recursively remove dependencies")
	f.StringVarP(&removeOpts.rootdir, "rootdir", "r", "", "Full path to rootdir")
	f.BoolVarP(&removeOpts.verbose, "verbose", "v", false, "Verbose messages")
	f.BoolVarP(&removeOpts.yes, "yes", "y", false, "Assume yes to all questions")
	f.BoolVarP(&removeOpts.version, "version", "V", false, "Show xpkg version")
}

func runRemove(cmd *cobra.Command, args []string) error {
	if removeOpts.version {
		printVersionOutput()
		return nil
	}
	if !removeOpts.cleanCache && !removeOpts.orphans && len(args) == 0 {
		_ = cmd.Usage()
		return fmt.Errorf("nothing to do")
	}

	var flags xpkg.Flags
	if removeOpts.debug {
		flags |= xpkg.FlagDebug
	}
	if removeOpts.verbose {
		flags |= xpkg.FlagVerbose
	}
	if removeOpts.force {
		flags |= xpkg.FlagForceRemoveFiles
	}
	if removeOpts.forceRevdeps {
		flags |= xpkg.FlagForceRevdeps
	}

	h, err := xpkg.Init(xpkg.Config{
		Rootdir:  removeOpts.rootdir,
		Cachedir: removeOpts.cachedir,
		Conffile: removeOpts.config,
		Flags:    flags,
	})
	if err != nil {
		return err
	}
	defer h.Close()
	h.RegisterStateCb(removeStateCb)
	h.Confirm = confirmPlan

	if removeOpts.cleanCache {
		if err := h.CleanCache(removeOpts.dryRun); err != nil {
			return err
		}
	}

	// The lock covers the whole mutation phase; a dry run never takes
	// it.
	if !removeOpts.dryRun {
		if err := h.PkgdbLock(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return err
		}
		defer h.PkgdbUnlock()
	}

	if removeOpts.orphans {
		if err := h.TransactionAutoremovePkgs(); err != nil {
			if err == xerrors.ErrNoOrphans {
				if len(args) == 0 {
					return nil
				}
			} else {
				fmt.Fprintf(os.Stderr, "Failed to queue package orphans: %v\n", err)
				return err
			}
		}
	}

	maxcols := output.MaxColumns()
	reqbyForce := false
	var blocked error
	for _, name := range args {
		err := h.TransactionRemovePkg(name, removeOpts.recursive)
		if err == nil {
			continue
		}
		if xerrors.IsNotInstalled(err) {
			fmt.Printf("Package `%s' is not currently installed.\n", name)
			continue
		}
		if re, ok := xerrors.AsRevdeps(err); ok {
			printRevdepsWarning(re, maxcols)
			reqbyForce = true
			if blocked == nil {
				blocked = re
			}
			continue
		}
		fmt.Fprintf(os.Stderr, "Failed to queue `%s' for removing: %v\n", name, err)
		return err
	}
	// Outside a dry run, blocked removals abort before execution, so
	// the operator has seen every blocker in one pass.
	if reqbyForce && !removeOpts.forceRevdeps && !removeOpts.dryRun {
		return blocked
	}

	if removeOpts.orphans || len(args) > 0 {
		_, err := h.ExecTransaction(context.Background(), transaction.Options{
			DryRun:           removeOpts.dryRun,
			AssumeYes:        removeOpts.yes,
			ForceRemoveFiles: removeOpts.force,
			ForceRevdeps:     removeOpts.forceRevdeps,
			Verbose:          removeOpts.verbose,
		})
		return err
	}
	return nil
}

// printRevdepsWarning prints the banner listing every installed
// package still requiring the one whose removal was requested.
func printRevdepsWarning(re *xerrors.RevdepsError, maxcols int) {
	plural := ""
	if len(re.Revdeps) > 1 {
		plural = "S"
	}
	fmt.Printf("WARNING: %s IS REQUIRED BY %d PACKAGE%s:\n\n", re.Pkgname, len(re.Revdeps), plural)
	lw := output.NewLineWriter(os.Stdout, maxcols)
	for _, pkgver := range re.Revdeps {
		lw.Print(pkgver)
	}
	lw.Flush()
	fmt.Printf("\n\n")
}

// removeStateCb renders driver events the way the removal front-end
// presents them. The driver already applies the ENOTEMPTY keep-going
// policy; everything arriving here is worth showing.
func removeStateCb(ev transaction.StateEvent) {
	switch ev.State {
	case transaction.StateRemove, transaction.StateRemoveDone, transaction.StateConfigure:
		fmt.Println(ev.Desc)
	case transaction.StateRemoveFile, transaction.StateRemoveFileObsolete:
		if removeOpts.verbose {
			fmt.Println(ev.Desc)
		}
	case transaction.StateRemoveFail, transaction.StateRemoveFileFail,
		transaction.StateRemoveFileHashFail, transaction.StateRemoveFileObsoleteFail:
		fmt.Fprintf(os.Stderr, "%s\n", ev.Desc)
	}
}
