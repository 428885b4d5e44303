package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/usecase/chat"
	"github.com/m-mizutani/docchat/pkg/usecase/sample"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const chatHelp = `Commands:
  /add PATH...     upload more documents into the current session
  /sample NAME     download a sample manual and upload it
  /new             end the session and delete its documents
  /resume          restart the conversation on the current documents
  /suggest         show suggested questions
  /status          show the session status
  /exit            quit (the session is kept for next time)
`

func chatCommand() *cli.Command {
	var (
		cfg config
		src documentSource
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Document to upload before chatting (repeatable)",
			Destination: &src.files,
		},
		&cli.StringSliceFlag{
			Name:        "sample",
			Usage:       "Sample manual to download and upload (see 'samples')",
			Destination: &src.samples,
		},
		&cli.StringSliceFlag{
			Name:        "meta",
			Aliases:     []string{"m"},
			Usage:       "Custom metadata attached to uploaded documents, key=value (repeatable)",
			Destination: &src.metadata,
		},
		&cli.StringFlag{
			Name:        "download-dir",
			Usage:       "Directory to store downloaded samples",
			Sources:     cli.EnvVars("DOCCHAT_DOWNLOAD_DIR"),
			Destination: &src.downloadDir,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Upload documents and chat with them interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.newLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			progress := newProgressView(w)
			defer progress.stop()

			session, closeRepo, err := cfg.startSession(ctx, chat.WithOnChange(progress.update))
			if err != nil {
				return err
			}
			defer closeRepo()

			r := &repl{
				w:        w,
				session:  session,
				progress: progress,
				src:      src,
			}
			r.printStatus()

			if !src.empty() {
				docs, err := src.collect(ctx)
				if err != nil {
					return err
				}
				r.upload(ctx, docs, true)
			}

			return r.run(ctx)
		},
	}
}

type repl struct {
	w        io.Writer
	session  *chat.Session
	progress *progressView
	src      documentSource
}

func (r *repl) run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/exit",
		Stdout:          r.w,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	fmt.Fprintf(r.w, "Type /help for commands.\n")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}

		r.ask(ctx, line)
	}
}

// command handles a slash command and reports whether the REPL should end
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Fprint(r.w, chatHelp)

	case "/add":
		if len(args) == 0 {
			fmt.Fprintf(r.w, "Usage: /add PATH...\n")
			return false
		}
		src := documentSource{files: args, metadata: r.src.metadata}
		r.uploadFrom(ctx, src)

	case "/sample":
		if len(args) == 0 {
			r.printSamples()
			return false
		}
		src := documentSource{
			samples:     []string{strings.Join(args, " ")},
			metadata:    r.src.metadata,
			downloadDir: r.src.downloadDir,
		}
		r.uploadFrom(ctx, src)

	case "/new":
		if err := r.session.EndSession(ctx); err != nil {
			fmt.Fprintf(r.w, "Cannot end the session: %v\n", err)
			return false
		}
		fmt.Fprintf(r.w, "Session ended. Upload documents with /add to start a new one.\n")

	case "/resume":
		if err := r.session.ResumeSession(); err != nil {
			fmt.Fprintf(r.w, "Nothing to resume. Upload documents with /add first.\n")
			return false
		}
		r.printStatus()

	case "/suggest":
		printSuggestions(r.w, r.session.Snapshot().Suggestions)

	case "/status":
		r.printStatus()

	default:
		fmt.Fprintf(r.w, "Unknown command %s. Type /help for commands.\n", name)
	}

	return false
}

func (r *repl) uploadFrom(ctx context.Context, src documentSource) {
	docs, err := src.collect(ctx)
	if err != nil {
		fmt.Fprintf(r.w, "Cannot read documents: %v\n", err)
		return
	}

	// The first upload of a session starts a new conversation
	reset := !r.session.Snapshot().HasStore()
	r.upload(ctx, docs, reset)
}

func (r *repl) upload(ctx context.Context, docs []*model.Document, reset bool) {
	err := r.session.UploadAndStart(ctx, docs, reset)
	r.progress.stop()

	snap := r.session.Snapshot()
	switch {
	case err == nil:
		fmt.Fprintf(r.w, "Ready to chat about %s.\n", snap.DocumentLabel)
		printSuggestions(r.w, snap.Suggestions)

	case goerr.HasTag(err, chat.ErrTagCredential):
		fmt.Fprintf(r.w, "%s\n", snap.CredentialError)

	case goerr.HasTag(err, chat.ErrTagUpload):
		fmt.Fprintf(r.w, "%s\n", snap.ErrorMessage)
		r.session.DismissError()

	default:
		fmt.Fprintf(r.w, "Cannot upload documents now: %v\n", err)
	}
}

func (r *repl) ask(ctx context.Context, text string) {
	if !r.session.Snapshot().HasStore() {
		fmt.Fprintf(r.w, "No documents yet. Upload documents with /add PATH or /sample NAME.\n")
		return
	}

	err := r.session.Send(ctx, text)
	r.progress.stop()

	if goerr.HasTag(err, chat.ErrTagQueryInFlight) {
		fmt.Fprintf(r.w, "Still waiting for the previous answer.\n")
		return
	}

	if answer, ok := lastAnswer(r.session.Snapshot()); ok {
		printAnswer(r.w, answer)
	}
	if err != nil {
		r.printDetails(ctx, err)
	}
}

// printDetails shows the cause of a failed answer when debug logging is on
func (r *repl) printDetails(ctx context.Context, err error) {
	if !goerr.HasTag(err, chat.ErrTagQuery) {
		return
	}
	if !logging.From(ctx).Enabled(ctx, slog.LevelDebug) {
		return
	}
	fmt.Fprintf(r.w, "(details: %v)\n", err)
}

func (r *repl) printStatus() {
	snap := r.session.Snapshot()

	if snap.CredentialError != "" {
		fmt.Fprintf(r.w, "%s\n", snap.CredentialError)
	}

	switch snap.Status {
	case model.StatusChatting:
		fmt.Fprintf(r.w, "Chatting about %s (%s).\n", snap.DocumentLabel, snap.ActiveStoreID)
	case model.StatusError:
		fmt.Fprintf(r.w, "%s\n", snap.ErrorMessage)
	default:
		fmt.Fprintf(r.w, "Welcome! Upload documents with /add PATH, or try a sample:\n")
		r.printSamples()
	}
}

func (r *repl) printSamples() {
	entries, err := sample.Catalog()
	if err != nil {
		fmt.Fprintf(r.w, "Cannot load samples: %v\n", err)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(r.w, "  /sample %s (%s)\n", e.Name, e.Details)
	}
}
