// Package command provides CLI command definitions for slatekv-cli.
//
// It uses urfave/cli/v2 for command parsing. Each subcommand maps to
// one server command; the default action sends the raw arguments as a
// command, so `slatekv-cli SET k v` and `slatekv-cli set k v` both
// work.
package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/slatekv/slatekv-go/internal/cli/client"
	"github.com/slatekv/slatekv-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "slatekv-cli",
		Usage:   "SlateKV command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: append(
			kvCommands(),
			systemCommands()...,
		),
		Action: func(c *cli.Context) error {
			// Raw mode: forward the arguments as one command.
			args := c.Args().Slice()
			if len(args) == 0 {
				return cli.ShowAppHelp(c)
			}
			return run(c, args...)
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address",
			EnvVars: []string{"SLATEKV_SERVER"},
			Value:   "127.0.0.1:31337",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "request timeout",
			Value:   client.DefaultTimeout,
		},
	}
}

// run sends one command and prints the reply.
func run(c *cli.Context, args ...string) error {
	conn, err := client.Dial(c.String("server"), c.Duration("timeout"))
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := conn.Do(args...)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, reply.Format())
	if reply.IsError() {
		return errors.New(reply.Str)
	}
	return nil
}

// requireArgs checks the exact argument count for a subcommand.
func requireArgs(c *cli.Context, n int, usage string) error {
	if c.Args().Len() != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}
