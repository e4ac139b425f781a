package auth

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Backend is the durable key-value surface the credential store persists to.
// Keys are KeyAccessToken, KeyRefreshToken and KeyUsername. Save replaces the
// full set of fields; Erase removes all of them. An empty backend returns an
// empty map and no error.
type Backend interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, fields map[string]string) error
	Erase(ctx context.Context) error
}

// Backend names accepted by NewBackend.
const (
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
)

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Type           string
	Path           string
	KeyringService string
	Redis          RedisOptions
}

// NewBackend builds the backend named by cfg.Type. An empty type selects the
// file backend.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Type {
	case "", BackendFile:
		return NewFileBackend(cfg.Path)
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendKeyring:
		return NewKeyringBackend(cfg.KeyringService), nil
	case BackendRedis:
		return NewRedisBackend(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown credentials backend: %s", cfg.Type)
	}
}

type MemoryBackend struct {
	mu     sync.Mutex
	fields map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{fields: map[string]string{}}
}

func (m *MemoryBackend) Name() string { return BackendMemory }

func (m *MemoryBackend) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.fields), nil
}

func (m *MemoryBackend) Save(_ context.Context, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = maps.Clone(fields)
	return nil
}

func (m *MemoryBackend) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = map[string]string{}
	return nil
}
