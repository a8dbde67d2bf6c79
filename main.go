// Package main is the entry point for the xpkg CLI.
//
// It delegates all command parsing and execution to the cmd package,
// which provides the install and removal front-ends over the embedder
// API.
package main

import "github.com/ajxudir/xpkg/cmd"

func main() {
	cmd.Execute()
}
