package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tgienger/tracker/internal/auth"
)

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the user directory",
		Subcommands: []*cli.Command{
			{
				Name:      "hash",
				Usage:     "Print a bcrypt hash for a directory password",
				ArgsUsage: "PASSWORD",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: tracker users hash PASSWORD", 2)
					}
					hashed, err := auth.HashPassword(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(hashed)
					return nil
				},
			},
		},
	}
}
