package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/docchat/pkg/adapter"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/repository"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Session drives document ingestion into a remote store and chat turns
// against it. It owns the state machine described by model.Status; callers
// observe it through Snapshot or the OnChange callback.
type Session struct {
	id      model.SessionID
	gateway adapter.FileSearch
	config  repository.Repository

	readyDelay time.Duration
	now        func() time.Time
	onChange   func(model.Session)

	mu    sync.Mutex
	state model.Session
	// epoch changes whenever the transcript is reset so that a reply of an
	// older turn is not appended to a new conversation
	epoch int
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	Gateway adapter.FileSearch
	// Config persists the active store name. Defaults to an in-memory store.
	Config repository.Repository
}

type Option func(*Session)

// WithReadyDelay sets how long the final "All set!" progress stays visible
func WithReadyDelay(d time.Duration) Option {
	return func(s *Session) {
		s.readyDelay = d
	}
}

// WithClock replaces the clock used to name new stores
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithOnChange registers a callback receiving a snapshot after every state change.
// The callback must not call back into Session synchronously.
func WithOnChange(fn func(model.Session)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

func New(input NewInput, opts ...Option) (*Session, error) {
	if input.Gateway == nil {
		return nil, goerr.New("gateway is required")
	}
	if input.Config == nil {
		input.Config = repository.NewMemory()
	}

	id := model.NewSessionID()
	s := &Session{
		id:         id,
		gateway:    input.Gateway,
		config:     input.Config,
		readyDelay: 500 * time.Millisecond,
		now:        time.Now,
		state: model.Session{
			ID:     id,
			Status: model.StatusInitializing,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Copy()
}

func (s *Session) logger(ctx context.Context) *slog.Logger {
	return logging.From(ctx).With("session_id", s.id)
}

// update applies fn under the lock and notifies the subscriber outside of it
func (s *Session) update(fn func(st *model.Session)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.Copy()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Session) notify(snapshot model.Session) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

func (s *Session) resetTranscript(st *model.Session) {
	st.Transcript = nil
	s.epoch++
}

// Boot restores the previously persisted store. Without one, or when loading
// fails, the session starts on the welcome screen.
func (s *Session) Boot(ctx context.Context) {
	logger := s.logger(ctx)

	s.mu.Lock()
	booted := s.state.Status != model.StatusInitializing
	s.mu.Unlock()
	if booted {
		return
	}

	credentialErr := ""
	if err := s.gateway.Ready(); err != nil {
		logger.Warn("gateway is not ready", "error", err)
		credentialErr = credentialMissingMessage
	}

	storeID, err := s.loadStoreID(ctx)
	if err != nil {
		logger.Error("failed to load stored RAG store", "error", err)
	}

	s.update(func(st *model.Session) {
		st.CredentialError = credentialErr
		if storeID == "" {
			st.Status = model.StatusWelcome
			return
		}

		st.ActiveStoreID = storeID
		if st.DocumentLabel == "" {
			st.DocumentLabel = storeID.ExistingSessionLabel()
		}
		st.Status = model.StatusChatting
	})

	if storeID != "" {
		logger.Info("resumed stored RAG store", "store", storeID)
	}
}

// ResumeSession re-enters the chat against the active store with a fresh transcript
func (s *Session) ResumeSession() error {
	s.mu.Lock()
	st := &s.state
	if !st.HasStore() {
		s.mu.Unlock()
		return goerr.New("no active store to resume", goerr.T(ErrTagInvalidState))
	}
	if st.Status == model.StatusUploading || !st.Status.CanTransitionTo(model.StatusChatting) {
		s.mu.Unlock()
		return goerr.New("cannot resume session", goerr.T(ErrTagInvalidState), goerr.V("status", st.Status.String()))
	}

	s.resetTranscript(st)
	st.Suggestions = nil
	if st.DocumentLabel == "" {
		st.DocumentLabel = st.ActiveStoreID.ExistingSessionLabel()
	}
	st.Status = model.StatusChatting
	snapshot := st.Copy()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// DismissError returns from the error screen to the welcome screen
func (s *Session) DismissError() {
	s.update(func(st *model.Session) {
		if st.Status != model.StatusError {
			return
		}
		st.ErrorMessage = ""
		st.Status = model.StatusWelcome
	})
}

// EndSession deletes the remote store and clears everything tied to it.
// Failures of the remote deletion and of persistence are logged only.
func (s *Session) EndSession(ctx context.Context) error {
	logger := s.logger(ctx)

	s.mu.Lock()
	if s.state.Status == model.StatusUploading {
		s.mu.Unlock()
		return goerr.New("cannot end session while uploading", goerr.T(ErrTagInvalidState))
	}
	storeID := s.state.ActiveStoreID
	s.mu.Unlock()

	if storeID != "" {
		if err := s.gateway.DeleteStore(ctx, storeID); err != nil {
			logger.Warn("failed to delete RAG store", "error", err, "store", storeID)
		}
		if err := s.saveStoreID(ctx, ""); err != nil {
			logger.Warn("failed to clear persisted RAG store", "error", err)
		}
	}

	s.update(func(st *model.Session) {
		s.resetTranscript(st)
		st.Suggestions = nil
		st.DocumentLabel = ""
		st.ActiveStoreID = ""
		st.Progress = nil
		st.ErrorMessage = ""
		st.Status = model.StatusWelcome
	})

	logger.Info("session ended", "store", storeID)
	return nil
}
