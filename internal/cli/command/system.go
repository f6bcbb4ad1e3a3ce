package command

import (
	"errors"

	"github.com/urfave/cli/v2"
)

// systemCommands returns the server management subcommands.
func systemCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "ping",
			Usage:     "Check server liveness",
			ArgsUsage: "[MESSAGE]",
			Action: func(c *cli.Context) error {
				if c.Args().Len() > 0 {
					return run(c, "PING", c.Args().First())
				}
				return run(c, "PING")
			},
		},
		{
			Name:  "dbsize",
			Usage: "Count live keys",
			Action: func(c *cli.Context) error {
				return run(c, "DBSIZE")
			},
		},
		{
			Name:  "save",
			Usage: "Trigger an on-demand snapshot",
			Action: func(c *cli.Context) error {
				return run(c, "SAVE")
			},
		},
		{
			Name:  "flush",
			Usage: "Remove all keys",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "yes",
					Usage: "skip the confirmation prompt",
				},
			},
			Action: func(c *cli.Context) error {
				if !c.Bool("yes") {
					return errors.New("flush removes every key; re-run with --yes to confirm")
				}
				return run(c, "FLUSH")
			},
		},
	}
}
