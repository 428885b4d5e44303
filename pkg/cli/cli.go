package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

// envFiles are loaded in order; values already set are never overwritten
var envFiles = []string{".env.local", ".env"}

func Run(ctx context.Context, argv []string) *Error {
	for _, f := range envFiles {
		// Missing files are fine, the environment may be set by other means
		_ = godotenv.Load(f)
	}

	cmd := &cli.Command{
		Name:  "docchat",
		Usage: "Chat with your documents through Gemini File Search",
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			endCommand(),
			storesCommand(),
			samplesCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
