package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/usecase/chat"
	"github.com/m-mizutani/docchat/pkg/usecase/sample"
	"github.com/m-mizutani/goerr/v2"
)

// startSession creates a booted chat session wired to the configured gateway
// and config store. The returned function releases the config store.
func (cfg *config) startSession(ctx context.Context, opts ...chat.Option) (*chat.Session, func(), error) {
	repo, closeRepo, err := cfg.newConfigStore(ctx)
	if err != nil {
		return nil, closeRepo, err
	}

	session, err := chat.New(chat.NewInput{
		Gateway: cfg.newGemini(),
		Config:  repo,
	}, opts...)
	if err != nil {
		closeRepo()
		return nil, func() {}, goerr.Wrap(err, "failed to create chat session")
	}

	session.Boot(ctx)
	return session, closeRepo, nil
}

// documentSource lists documents given on the command line
type documentSource struct {
	files       []string
	samples     []string
	metadata    []string
	downloadDir string
}

func (src *documentSource) empty() bool {
	return len(src.files) == 0 && len(src.samples) == 0
}

func (src *documentSource) collect(ctx context.Context) ([]*model.Document, error) {
	meta, err := model.ParseMetadata(src.metadata)
	if err != nil {
		return nil, err
	}

	var docs []*model.Document
	for _, path := range src.files {
		if _, err := os.Stat(path); err != nil {
			return nil, goerr.Wrap(err, "document is not readable", goerr.V("path", path))
		}
		docs = append(docs, model.NewDocument(path, meta...))
	}

	if len(src.samples) > 0 {
		entries, err := sample.Catalog()
		if err != nil {
			return nil, err
		}

		dir := src.downloadDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "docchat-samples")
		}

		for _, name := range src.samples {
			entry := sample.Find(entries, name)
			if entry == nil {
				return nil, goerr.New("unknown sample", goerr.V("name", name))
			}
			doc, err := sample.Fetch(ctx, entry, dir)
			if err != nil {
				return nil, err
			}
			doc.Metadata = append(doc.Metadata, meta...)
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func printAnswer(w io.Writer, msg model.ChatMessage) {
	fmt.Fprintf(w, "%s\n", msg.Text)
	if len(msg.GroundingChunks) == 0 {
		return
	}

	fmt.Fprintf(w, "\nSources:\n")
	for i, chunk := range msg.GroundingChunks {
		title := chunk.Title
		if title == "" {
			title = "Source"
		}
		fmt.Fprintf(w, "  [%d] %s: %s\n", i+1, title, excerpt(chunk.Text, 160))
	}
}

func printSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		fmt.Fprintf(w, "No suggested questions\n")
		return
	}
	fmt.Fprintf(w, "Suggested questions:\n")
	for i, q := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, q)
	}
}

// excerpt collapses whitespace and cuts text to at most n runes
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// lastAnswer returns the latest model message of the transcript
func lastAnswer(s model.Session) (model.ChatMessage, bool) {
	if n := len(s.Transcript); n > 0 && s.Transcript[n-1].Role == model.RoleModel {
		return s.Transcript[n-1], true
	}
	return model.ChatMessage{}, false
}
