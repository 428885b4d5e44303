package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/docchat/pkg/model"
)

type Memory struct {
	mu  sync.RWMutex
	cfg model.AppConfig
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.cfg
	return &cfg, nil
}

func (m *Memory) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = *cfg
	return nil
}
