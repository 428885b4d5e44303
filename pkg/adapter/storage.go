package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// ErrObjectNotFound is returned by Storage.Get when the key does not exist
var ErrObjectNotFound = goerr.New("object not found")

// Storage is the interface for object storage holding persisted session configuration
type Storage interface {
	// Put returns a writer; the object is committed when the writer is closed
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.V("bucket", s.bucketName), goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("bucket", s.bucketName), goerr.V("key", key))
	}

	return reader, nil
}
