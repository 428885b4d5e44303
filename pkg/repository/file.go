package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultFilePath is the configuration file used when no store is given
const DefaultFilePath = ".config.local"

// File keeps the configuration as an indented JSON file
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	if path == "" {
		path = DefaultFilePath
	}
	return &File{path: path}
}

func (f *File) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &model.AppConfig{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", f.path))
	}

	var cfg model.AppConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", f.path))
	}
	return &cfg, nil
}

func (f *File) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "failed to create config directory", goerr.V("dir", dir))
		}
	}

	// Write to a temp file first so a crash never leaves half a config behind
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return goerr.Wrap(err, "failed to write config file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return goerr.Wrap(err, "failed to replace config file", goerr.V("path", f.path))
	}
	return nil
}
