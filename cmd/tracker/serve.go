package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tgienger/tracker/internal/api"
	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/logging"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
		},
		Action: func(c *cli.Context) error {
			svc, err := openServices(c, os.Stderr)
			if err != nil {
				return err
			}
			defer svc.Close()

			cfg := svc.cfg
			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			server := api.NewServer(port, api.Deps{
				Tasks:         svc.tasks,
				Conversations: svc.conversations,
				Auth:          svc.validator,
				Tokens:        auth.NewTokenService(cfg.Server.JWTSecret, cfg.Server.TokenTTL, nil),
				LoginRate:     cfg.Server.LoginRate,
				LoginBurst:    cfg.Server.LoginBurst,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			lg := logging.Component("main")
			select {
			case err := <-errCh:
				return err
			case sig := <-quit:
				lg.Info().Str("signal", sig.String()).Msg("Shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
}
