package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tgienger/tracker/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("Configuration file created at %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Check the configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					fmt.Println("Configuration is valid")
					if cfg.Auth.UsersSource == "" {
						fmt.Println("Warning: auth.users_source is not set, nobody can log in")
					}
					if cfg.Mail.Host == "" {
						fmt.Println("Warning: mail.host is not set, notifications are only logged")
					}
					return nil
				},
			},
		},
	}
}
