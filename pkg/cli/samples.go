package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/docchat/pkg/usecase/sample"
	"github.com/urfave/cli/v3"
)

func samplesCommand() *cli.Command {
	return &cli.Command{
		Name:  "samples",
		Usage: "List sample manuals that can be uploaded with 'chat --sample NAME'",
		Action: func(ctx context.Context, c *cli.Command) error {
			entries, err := sample.Catalog()
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", e.Name, e.Details, e.URL)
			}
			return nil
		},
	}
}
