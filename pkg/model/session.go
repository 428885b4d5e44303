package model

import (
	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Status int

const (
	StatusInitializing Status = iota
	StatusWelcome
	StatusUploading
	StatusChatting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusWelcome:
		return "welcome"
	case StatusUploading:
		return "uploading"
	case StatusChatting:
		return "chatting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

var statusTransitions = map[Status][]Status{
	StatusInitializing: {StatusWelcome, StatusChatting},
	StatusWelcome:      {StatusUploading, StatusChatting},
	StatusUploading:    {StatusChatting, StatusWelcome, StatusError},
	StatusChatting:     {StatusWelcome, StatusUploading},
	StatusError:        {StatusWelcome},
}

// CanTransitionTo reports whether the session may move from s to next
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// UploadProgress exists only while the session is uploading
type UploadProgress struct {
	Current  int
	Total    int
	Message  string
	FileName string
}

const (
	ProgressCreatingIndex        = "Creating document index..."
	ProgressUpdatingIndex        = "Updating document index..."
	ProgressGeneratingEmbeddings = "Generating embeddings..."
	ProgressGeneratingSuggestion = "Generating suggestions..."
	ProgressReady                = "All set!"
)

// Session is a point-in-time view of a chat session. Values handed out by the
// usecase layer are copies and can be kept by the caller.
type Session struct {
	ID            SessionID
	ActiveStoreID StoreID
	DocumentLabel string
	Status        Status
	Progress      *UploadProgress
	Transcript    []ChatMessage
	Suggestions   []string
	QueryLoading  bool

	// CredentialError is shown on the welcome screen until the next upload attempt
	CredentialError string
	// ErrorMessage is set while Status is StatusError
	ErrorMessage string
}

// HasStore returns true if a remote store is attached to the session
func (s Session) HasStore() bool {
	return s.ActiveStoreID != ""
}

// Copy returns a deep copy of the session
func (s *Session) Copy() Session {
	c := *s
	if s.Progress != nil {
		p := *s.Progress
		c.Progress = &p
	}
	if s.Transcript != nil {
		c.Transcript = make([]ChatMessage, len(s.Transcript))
		for i, msg := range s.Transcript {
			c.Transcript[i] = msg.Copy()
		}
	}
	if s.Suggestions != nil {
		c.Suggestions = append([]string{}, s.Suggestions...)
	}
	return c
}
