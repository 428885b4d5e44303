package sample

import (
	"context"
	_ "embed"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogData []byte

// Entry is a downloadable sample document
type Entry struct {
	Name    string `yaml:"name"`
	Details string `yaml:"details"`
	URL     string `yaml:"url"`
	File    string `yaml:"file"`
}

type catalog struct {
	Samples []*Entry `yaml:"samples"`
}

// Catalog returns the built-in sample documents
func Catalog() ([]*Entry, error) {
	return Parse(catalogData)
}

// Parse reads a YAML catalog
func Parse(data []byte) ([]*Entry, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, goerr.Wrap(err, "failed to parse sample catalog")
	}

	for _, e := range c.Samples {
		if e.Name == "" || e.URL == "" {
			return nil, goerr.New("sample entry requires name and url", goerr.V("entry", e))
		}
		if e.File == "" {
			e.File = filepath.Base(e.URL)
		}
	}
	return c.Samples, nil
}

// Find looks up an entry by name (case-insensitive) or file name
func Find(entries []*Entry, name string) *Entry {
	for _, e := range entries {
		if strings.EqualFold(e.Name, name) || e.File == name {
			return e
		}
	}
	return nil
}

// Fetch downloads the entry into dir and returns it as a document ready to upload
func Fetch(ctx context.Context, entry *Entry, dir string) (*model.Document, error) {
	return fetch(ctx, http.DefaultClient, entry, dir)
}

func fetch(ctx context.Context, client *http.Client, entry *Entry, dir string) (*model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", entry.URL))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download sample", goerr.V("url", entry.URL))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected status code",
			goerr.V("url", entry.URL),
			goerr.V("status", resp.StatusCode))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create download directory", goerr.V("dir", dir))
	}

	path := filepath.Join(dir, entry.File)
	f, err := os.Create(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file", goerr.V("path", path))
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to write sample", goerr.V("path", path))
	}
	logging.From(ctx).Debug("downloaded sample", "name", entry.Name, "path", path, "bytes", n)

	doc := model.NewDocument(path)
	if ct := resp.Header.Get("Content-Type"); doc.MIMEType == "" && ct != "" {
		doc.MIMEType = strings.TrimSpace(strings.Split(ct, ";")[0])
	}
	return doc, nil
}
