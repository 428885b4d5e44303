package repository

import (
	"context"

	"github.com/m-mizutani/docchat/pkg/model"
)

// Repository defines the interface for session configuration persistence.
// An absent or empty configuration is returned as an empty AppConfig, not an error.
type Repository interface {
	GetConfig(ctx context.Context) (*model.AppConfig, error)

	// PutConfig overwrites the whole configuration
	PutConfig(ctx context.Context, cfg *model.AppConfig) error
}
