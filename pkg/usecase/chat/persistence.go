package chat

import (
	"context"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

func (s *Session) loadStoreID(ctx context.Context) (model.StoreID, error) {
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to load config", goerr.T(ErrTagPersistence))
	}
	return cfg.RAGStoreName, nil
}

// saveStoreID merges the store name into the persisted configuration. An
// unreadable configuration is replaced rather than blocking the save.
func (s *Session) saveStoreID(ctx context.Context, storeID model.StoreID) error {
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		s.logger(ctx).Warn("unable to load persisted config, overwriting it", "error", err)
		cfg = &model.AppConfig{}
	}

	cfg.RAGStoreName = storeID
	if err := s.config.PutConfig(ctx, cfg); err != nil {
		return goerr.Wrap(err, "failed to persist config", goerr.T(ErrTagPersistence), goerr.V("store", storeID))
	}
	return nil
}
