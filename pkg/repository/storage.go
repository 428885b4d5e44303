package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/m-mizutani/docchat/pkg/adapter"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Storage keeps the configuration as a JSON object in object storage
type Storage struct {
	storage adapter.Storage
	key     string
}

func NewStorage(storage adapter.Storage, key string) *Storage {
	if key == "" {
		key = "docchat/config.json"
	}
	return &Storage{storage: storage, key: key}
}

func (r *Storage) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	reader, err := r.storage.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return &model.AppConfig{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get config object")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config object", goerr.V("key", r.key))
	}

	var cfg model.AppConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config object", goerr.V("key", r.key))
	}
	return &cfg, nil
}

func (r *Storage) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	writer, err := r.storage.Put(ctx, r.key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", r.key))
	}

	if err := json.NewEncoder(writer).Encode(cfg); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write config object", goerr.V("key", r.key))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", r.key))
	}
	return nil
}
