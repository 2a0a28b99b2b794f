package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// TRACKER_* variables may come from a local .env file
	_ = godotenv.Load()

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("tracker %s (commit: %s, built: %s)\n", version, commit, date)
	}

	app := &cli.App{
		Name:    "tracker",
		Usage:   "Team task sheet with P1 notifications and discussion threads",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "tracker.toml",
				EnvVars: []string{"TRACKER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			tuiCommand(),
			configCommand(),
			usersCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
