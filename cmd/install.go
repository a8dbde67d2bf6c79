package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajxudir/xpkg/pkg/transaction"
	"github.com/ajxudir/xpkg/pkg/xpkg"
)

var installOpts struct {
	config    string
	cachedir  string
	rootdir   string
	automatic bool
	debug     bool
	dryRun    bool
	verbose   bool
	yes       bool
	version   bool
}

var installCmd = &cobra.Command{
	Use:   "install [OPTIONS] [PKGPATTERN...]",
	Short: "Install or update packages",
	Long: `Stage and execute an install/update transaction for the given
dependency patterns, resolving run-time dependencies from the
configured repositories.`,
	RunE: runInstall,
}

func init() {
	f := installCmd.Flags()
	f.StringVarP(&installOpts.config, "config", "C", "", "Full path to configuration file")
	f.StringVarP(&installOpts.cachedir, "cachedir", "c", "", "Full path to cachedir")
	f.BoolVarP(&installOpts.automatic, "automatic", "A", false, "Mark packages as installed automatically")
	f.BoolVarP(&installOpts.debug, "debug", "d", false, "Debug mode shown to stderr")
	f.BoolVarP(&installOpts.dryRun, "dry-run", "n", false, "Dry-run mode")
	f.StringVarP(&installOpts.rootdir, "rootdir", "r", "", "Full path to rootdir")
	f.BoolVarP(&installOpts.verbose, "verbose", "v", false, "Verbose messages")
	f.BoolVarP(&installOpts.yes, "yes", "y", false, "Assume yes to all questions")
	f.BoolVarP(&installOpts.version, "version", "V", false, "Show xpkg version")
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installOpts.version {
		printVersionOutput()
		return nil
	}
	if len(args) == 0 {
		_ = cmd.Usage()
		return fmt.Errorf("nothing to do")
	}

	var flags xpkg.Flags
	if installOpts.debug {
		flags |= xpkg.FlagDebug
	}
	if installOpts.verbose {
		flags |= xpkg.FlagVerbose
	}

	h, err := xpkg.Init(xpkg.Config{
		Rootdir:  installOpts.rootdir,
		Cachedir: installOpts.cachedir,
		Conffile: installOpts.config,
		Flags:    flags,
	})
	if err != nil {
		return err
	}
	defer h.Close()
	h.RegisterStateCb(installStateCb)
	h.Confirm = confirmPlan

	if !installOpts.dryRun {
		if err := h.PkgdbLock(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return err
		}
		defer h.PkgdbUnlock()
	}

	for _, pattern := range args {
		if err := h.TransactionInstallPkg(pattern, installOpts.automatic); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to queue `%s' for installing: %v\n", pattern, err)
			return err
		}
	}

	stats, err := h.ExecTransaction(context.Background(), transaction.Options{
		DryRun:    installOpts.dryRun,
		AssumeYes: installOpts.yes,
		Verbose:   installOpts.verbose,
	})
	if err != nil {
		return err
	}
	if stats.Installed+stats.Updated+stats.Configured > 0 {
		fmt.Printf("%d installed, %d updated, %d configured.\n", stats.Installed, stats.Updated, stats.Configured)
	}
	return nil
}

func installStateCb(ev transaction.StateEvent) {
	switch ev.State {
	case transaction.StateInstall, transaction.StateUpdate, transaction.StateConfigure:
		if ev.Desc != "" {
			fmt.Println(ev.Desc)
		}
	case transaction.StateDownload, transaction.StateVerify, transaction.StateUnpack:
		if installOpts.verbose {
			fmt.Printf("%s: %s\n", ev.State, ev.Arg)
		}
	}
}
