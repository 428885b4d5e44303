package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func storesCommand() *cli.Command {
	var (
		cfg      config
		toDelete []string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "delete",
			Usage:       "Delete a file search store by name, e.g. fileSearchStores/xxx (repeatable)",
			Destination: &toDelete,
		},
	}
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, logFlags(&cfg)...)

	return &cli.Command{
		Name:  "stores",
		Usage: "List file search stores of the API key",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.newLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			gemini := cfg.newGemini()
			if err := gemini.Ready(); err != nil {
				return err
			}

			for _, name := range toDelete {
				if err := gemini.DeleteStore(ctx, storeIDOf(name)); err != nil {
					return goerr.Wrap(err, "failed to delete store", goerr.V("name", name))
				}
				fmt.Fprintf(c.Root().Writer, "Deleted %s\n", name)
			}
			if len(toDelete) > 0 {
				return nil
			}

			stores, err := gemini.ListStores(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list stores")
			}

			if len(stores) == 0 {
				fmt.Fprintf(c.Root().Writer, "No file search stores found\n")
				return nil
			}

			for _, s := range stores {
				created := ""
				if !s.CreatedAt.IsZero() {
					created = s.CreatedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\tactive=%d pending=%d failed=%d\t%d bytes\t%s\n",
					s.ID,
					s.DisplayName,
					s.ActiveDocuments,
					s.PendingDocuments,
					s.FailedDocuments,
					s.SizeBytes,
					created,
				)
			}

			return nil
		},
	}
}

// storeIDOf accepts a full resource name or its last segment
func storeIDOf(name string) model.StoreID {
	if strings.Contains(name, "/") {
		return model.StoreID(name)
	}
	return model.StoreID("fileSearchStores/" + name)
}
