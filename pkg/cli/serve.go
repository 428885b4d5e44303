package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/docchat/pkg/service/configserver"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the config endpoint",
			Value:       ":3000",
			Sources:     cli.EnvVars("DOCCHAT_SERVE_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, logFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the active store name over HTTP at " + configserver.ConfigPath,
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.newLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newConfigStore(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			srv := configserver.New(repo)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Run(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logging.From(ctx).Info("shutting down config server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
