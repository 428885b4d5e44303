package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func endCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "end",
		Usage: "End the current session and delete its documents",
		Flags: allFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.newLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			session, closeRepo, err := cfg.startSession(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			storeID := session.Snapshot().ActiveStoreID
			if storeID == "" {
				fmt.Fprintf(c.Root().Writer, "No active session\n")
				return nil
			}

			if err := session.EndSession(ctx); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Session %s ended\n", storeID.Label())
			return nil
		},
	}
}
