package prefs

import (
	"context"
	"sync"
)

// Backend is raw key-value storage scoped by client id.
type Backend interface {
	Get(ctx context.Context, client, key string) (string, bool, error)
	Set(ctx context.Context, client, key, value string) error
	Delete(ctx context.Context, client, key string) error
	Close() error
}

// Memory is an in-process Backend.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, client, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[client][key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, client, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[client] == nil {
		m.data[client] = make(map[string]string)
	}
	m.data[client][key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, client, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[client], key)
	return nil
}

func (m *Memory) Close() error { return nil }
