// Package main provides the entry point for slatekv-cli.
//
// slatekv-cli is the command-line client for SlateKV. It supports
// typed subcommands (get, set, del, ...) and a raw mode that forwards
// any unrecognized command verbatim to the server.
package main

import (
	"fmt"
	"os"

	"github.com/slatekv/slatekv-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
