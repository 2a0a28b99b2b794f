package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/config"
	"github.com/tgienger/tracker/internal/ui"
)

func tuiCommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Open the terminal client on the local database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "Username to act as",
				Required: true,
				EnvVars:  []string{"TRACKER_USER"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password for `USER`",
				EnvVars: []string{"TRACKER_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			// The alt screen owns the terminal, so logs go to a file
			dataDir, err := config.DataDir()
			if err != nil {
				return err
			}
			logFile := &lumberjack.Logger{
				Filename:   filepath.Join(dataDir, "tracker.log"),
				MaxSize:    5, // megabytes
				MaxBackups: 3,
				MaxAge:     28,
			}
			defer logFile.Close()

			svc, err := openServices(c, logFile)
			if err != nil {
				return err
			}
			defer svc.Close()

			user, err := svc.validator.Validate(c.Context, c.String("user"), c.String("password"))
			if err != nil {
				return fmt.Errorf("login failed: %s", apperr.MessageOf(err))
			}

			app := ui.NewApp(svc.db, svc.tasks, svc.conversations, user)
			p := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running application: %w", err)
			}
			return nil
		},
	}
}
