package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/docchat/pkg/model"
)

// progressView renders upload progress and pending answers with a spinner.
// It is registered as the session's change callback.
type progressView struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	active  bool
}

func newProgressView(w io.Writer) *progressView {
	return &progressView{
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w)),
	}
}

func (p *progressView) update(s model.Session) {
	suffix, busy := progressSuffix(s)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !busy {
		if p.active {
			p.spinner.Stop()
			p.active = false
		}
		return
	}

	p.spinner.Lock()
	p.spinner.Suffix = suffix
	p.spinner.Unlock()

	if !p.active {
		p.spinner.Start()
		p.active = true
	}
}

func (p *progressView) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		p.spinner.Stop()
		p.active = false
	}
}

// progressSuffix returns the spinner text for s and whether anything is in progress
func progressSuffix(s model.Session) (string, bool) {
	if s.Status == model.StatusUploading && s.Progress != nil {
		p := s.Progress
		text := fmt.Sprintf(" [%d/%d] %s", p.Current, p.Total, p.Message)
		if p.FileName != "" {
			text += " " + p.FileName
		}
		return text, true
	}

	if s.QueryLoading {
		return " Thinking...", true
	}

	return "", false
}
