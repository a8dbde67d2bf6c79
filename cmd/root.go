// Package cmd implements the command-line interface for xpkg. It
// provides the removal and install front-ends over the embedder API
// and translates domain errors into the exit-code contract.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ajxudir/xpkg/pkg/errors"
	"github.com/ajxudir/xpkg/pkg/verbose"
)

var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "xpkg",
	Short: "Binary package manager transaction tool",
	Long:  `Plan and execute package install, update and removal transactions.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the mapped code:
//   - 0: success
//   - 17: removal blocked by reverse dependencies (without -F)
//   - other non-zero: OS error from the failing step, or 1
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := errors.GetExitCode(err)
		verbose.Debugf("exit code %d: %v\n", code, err)
		exitFunc(code)
	}
}

// ExecuteTest runs the root command for testing, returning the error
// instead of exiting.
func ExecuteTest() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
}
