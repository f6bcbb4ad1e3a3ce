package command

import (
	"strconv"

	"github.com/urfave/cli/v2"
)

// kvCommands returns the key-value subcommands.
func kvCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "get",
			Usage:     "Get the value of a key",
			ArgsUsage: "KEY",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "get KEY"); err != nil {
					return err
				}
				return run(c, "GET", c.Args().First())
			},
		},
		{
			Name:      "set",
			Usage:     "Set a key to a value",
			ArgsUsage: "KEY VALUE",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:  "ex",
					Usage: "expire after `SECONDS`",
				},
				&cli.Int64Flag{
					Name:  "px",
					Usage: "expire after `MILLISECONDS`",
				},
			},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2, "set KEY VALUE [--ex seconds | --px millis]"); err != nil {
					return err
				}
				args := []string{"SET", c.Args().Get(0), c.Args().Get(1)}
				if ex := c.Int64("ex"); ex > 0 {
					args = append(args, "EX", strconv.FormatInt(ex, 10))
				} else if px := c.Int64("px"); px > 0 {
					args = append(args, "PX", strconv.FormatInt(px, 10))
				}
				return run(c, args...)
			},
		},
		{
			Name:      "del",
			Usage:     "Delete one or more keys",
			ArgsUsage: "KEY [KEY...]",
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return requireArgs(c, 1, "del KEY [KEY...]")
				}
				return run(c, append([]string{"DEL"}, c.Args().Slice()...)...)
			},
		},
		{
			Name:      "exists",
			Usage:     "Count how many of the given keys exist",
			ArgsUsage: "KEY [KEY...]",
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return requireArgs(c, 1, "exists KEY [KEY...]")
				}
				return run(c, append([]string{"EXISTS"}, c.Args().Slice()...)...)
			},
		},
		{
			Name:      "expire",
			Usage:     "Set a key's time to live in seconds",
			ArgsUsage: "KEY SECONDS",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2, "expire KEY SECONDS"); err != nil {
					return err
				}
				return run(c, "EXPIRE", c.Args().Get(0), c.Args().Get(1))
			},
		},
		{
			Name:      "persist",
			Usage:     "Remove a key's expiration",
			ArgsUsage: "KEY",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "persist KEY"); err != nil {
					return err
				}
				return run(c, "PERSIST", c.Args().First())
			},
		},
		{
			Name:      "ttl",
			Usage:     "Get a key's remaining time to live in seconds",
			ArgsUsage: "KEY",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "ttl KEY"); err != nil {
					return err
				}
				return run(c, "TTL", c.Args().First())
			},
		},
		{
			Name:      "keys",
			Usage:     "List keys matching a glob pattern",
			ArgsUsage: "[PATTERN]",
			Action: func(c *cli.Context) error {
				pattern := "*"
				if c.Args().Len() > 0 {
					pattern = c.Args().First()
				}
				return run(c, "KEYS", pattern)
			},
		},
		{
			Name:      "mget",
			Usage:     "Get the values of multiple keys",
			ArgsUsage: "KEY [KEY...]",
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return requireArgs(c, 1, "mget KEY [KEY...]")
				}
				return run(c, append([]string{"MGET"}, c.Args().Slice()...)...)
			},
		},
		{
			Name:      "mset",
			Usage:     "Set multiple key-value pairs",
			ArgsUsage: "KEY VALUE [KEY VALUE...]",
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 2 || c.Args().Len()%2 != 0 {
					return requireArgs(c, 2, "mset KEY VALUE [KEY VALUE...]")
				}
				return run(c, append([]string{"MSET"}, c.Args().Slice()...)...)
			},
		},
	}
}
