package model

import (
	"strings"
	"time"
)

// StoreID is the resource name of a remote file search store, e.g. "fileSearchStores/abc-123"
type StoreID string

// Label returns the last path segment of the resource name
func (x StoreID) Label() string {
	s := string(x)
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

// ExistingSessionLabel is the document label used when a store is resumed
// without knowing which files were uploaded into it
func (x StoreID) ExistingSessionLabel() string {
	return "Existing Session (" + x.Label() + ")"
}

type Store struct {
	ID               StoreID
	DisplayName      string
	ActiveDocuments  int64
	PendingDocuments int64
	FailedDocuments  int64
	SizeBytes        int64
	CreatedAt        time.Time
}
