package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ConfigClient talks to the session persistence endpoint (see configserver)
type ConfigClient struct {
	endpoint string
	client   *http.Client
}

type ConfigClientOption func(*ConfigClient)

func WithHTTPClient(client *http.Client) ConfigClientOption {
	return func(c *ConfigClient) {
		c.client = client
	}
}

func NewConfigClient(endpoint string, opts ...ConfigClientOption) *ConfigClient {
	c := &ConfigClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ConfigClient) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create config request", goerr.V("endpoint", c.endpoint))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load config", goerr.V("endpoint", c.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("failed to load config: "+resp.Status, goerr.V("endpoint", c.endpoint), goerr.V("status", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config response")
	}

	var cfg model.AppConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config", goerr.V("body", string(data)))
	}
	return &cfg, nil
}

func (c *ConfigClient) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to create config request", goerr.V("endpoint", c.endpoint))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to persist config", goerr.V("endpoint", c.endpoint))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("failed to persist config: "+resp.Status, goerr.V("endpoint", c.endpoint), goerr.V("status", resp.StatusCode))
	}
	return nil
}
