package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "docchat:config"

// Redis keeps the configuration as a JSON string value
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(ctx context.Context, url, key string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse redis url")
	}
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", opt.Addr))
	}

	return &Redis{client: client, key: key}, nil
}

func (r *Redis) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.AppConfig{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get config", goerr.V("key", r.key))
	}

	var cfg model.AppConfig
	if len(data) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config", goerr.V("key", r.key))
	}
	return &cfg, nil
}

func (r *Redis) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to put config", goerr.V("key", r.key))
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
