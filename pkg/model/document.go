package model

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Metadata is a custom key/value pair attached to an uploaded document
type Metadata struct {
	Key   string
	Value string
}

// ParseMetadata parses "key=value" expressions
func ParseMetadata(exprs []string) ([]Metadata, error) {
	var result []Metadata
	for _, expr := range exprs {
		key, value, ok := strings.Cut(expr, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, goerr.New("metadata must be key=value", goerr.V("metadata", expr))
		}
		result = append(result, Metadata{Key: key, Value: strings.TrimSpace(value)})
	}
	return result, nil
}

// Document is a local file to be ingested into a store
type Document struct {
	Name     string
	Path     string
	MIMEType string
	Metadata []Metadata
}

// NewDocument creates a Document from a local file path. MIMEType is left to
// the gateway when empty.
func NewDocument(path string, metadata ...Metadata) *Document {
	return &Document{
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Metadata: metadata,
	}
}

// DescribeDocuments returns the label shown for a set of uploaded documents
func DescribeDocuments(docs []*Document) string {
	switch len(docs) {
	case 0:
		return ""
	case 1:
		return docs[0].Name
	case 2:
		return docs[0].Name + " & " + docs[1].Name
	default:
		return fmt.Sprintf("%d documents", len(docs))
	}
}
