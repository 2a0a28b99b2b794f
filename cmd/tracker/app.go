package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/config"
	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/db"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/notify"
	"github.com/tgienger/tracker/internal/tasks"
)

// services bundles everything the server and terminal client share
type services struct {
	cfg           *config.Config
	db            *db.DB
	tasks         *tasks.Service
	conversations *conversation.Service
	validator     *auth.Validator
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openServices loads configuration, sets up logging to logOut and opens the
// database
func openServices(c *cli.Context, logOut io.Writer) (*services, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, logOut)

	if cfg.Auth.UsersSource == "" {
		return nil, fmt.Errorf("auth.users_source is required")
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("error resolving database path: %w", err)
	}
	database, err := db.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	lg := logging.Component("main")
	lg.Info().Str("database", dbPath).Msg("Database ready")

	directory := auth.NewDirectorySource(cfg.Auth.UsersSource, cfg.Auth.FetchTimeout)

	return &services{
		cfg:           cfg,
		db:            database,
		tasks:         tasks.NewService(database, newNotifier(cfg), nil),
		conversations: conversation.NewService(database, nil),
		validator:     auth.NewValidator(directory.Load, cfg.Auth.CacheTTL, nil),
	}, nil
}

func newNotifier(cfg *config.Config) *notify.Service {
	lg := logging.Component("main")

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.Mail.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Secure:   cfg.Mail.Secure,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		lg.Info().Str("host", cfg.Mail.Host).Int("port", cfg.Mail.Port).Msg("SMTP notifications enabled")
	} else {
		lg.Warn().Msg("mail.host not set, notifications are only logged")
	}

	return notify.NewService(mailer, notify.Recipients{
		Owners: cfg.Mail.Owners,
		Admin:  cfg.Mail.Admin,
	}, cfg.Mail.Timeout)
}

func (s *services) Close() error {
	return s.db.Close()
}
