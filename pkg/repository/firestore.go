package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionConfigs = "configs"
	defaultConfigDoc  = "default"
)

// Firestore keeps the configuration in a single Firestore document
type Firestore struct {
	client *firestore.Client
	docID  string
}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = "(default)"
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{
		client: client,
		docID:  defaultConfigDoc,
	}, nil
}

func (r *Firestore) doc() *firestore.DocumentRef {
	return r.client.Collection(collectionConfigs).Doc(r.docID)
}

func (r *Firestore) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	snap, err := r.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &model.AppConfig{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get config", goerr.V("doc", r.docID))
	}

	var cfg model.AppConfig
	if err := snap.DataTo(&cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to decode config", goerr.V("doc", r.docID))
	}
	return &cfg, nil
}

func (r *Firestore) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	if _, err := r.doc().Set(ctx, cfg); err != nil {
		return goerr.Wrap(err, "failed to put config", goerr.V("doc", r.docID))
	}
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}
