package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/docchat/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg config
		src documentSource
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Document to upload into a new session before asking (repeatable)",
			Destination: &src.files,
		},
		&cli.StringSliceFlag{
			Name:        "meta",
			Aliases:     []string{"m"},
			Usage:       "Custom metadata attached to uploaded documents, key=value (repeatable)",
			Destination: &src.metadata,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a single question about the documents of the current session",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

			ctx, err := cfg.newLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			session, closeRepo, err := cfg.startSession(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			if !src.empty() {
				docs, err := src.collect(ctx)
				if err != nil {
					return err
				}
				if err := session.UploadAndStart(ctx, docs, true); err != nil {
					return describeUploadError(session, err)
				}
			}

			snap := session.Snapshot()
			if snap.CredentialError != "" {
				return goerr.New(snap.CredentialError)
			}
			if !snap.HasStore() {
				return goerr.New("no active session, upload documents with 'chat --file' or 'ask --file' first")
			}

			sendErr := session.Send(ctx, question)
			if answer, ok := lastAnswer(session.Snapshot()); ok {
				printAnswer(c.Root().Writer, answer)
			}
			return sendErr
		},
	}
}

// describeUploadError replaces a failed upload error with the message shown to the user
func describeUploadError(session *chat.Session, err error) error {
	snap := session.Snapshot()
	switch {
	case goerr.HasTag(err, chat.ErrTagCredential):
		return goerr.Wrap(err, snap.CredentialError)
	case goerr.HasTag(err, chat.ErrTagUpload):
		return goerr.Wrap(err, snap.ErrorMessage)
	default:
		return err
	}
}
