package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store holds the current credential in memory and writes it through to a
// Backend. Get never touches the backend and never waits on it.
//
// Every Set and Clear advances the store version by one. Callers that read a
// credential, do slow work and then write back use the version to detect that
// the session changed underneath them.
type Store struct {
	mu      sync.RWMutex
	current *Credential
	version uint64

	// persistMu orders backend writes so the backend ends up with the value
	// of the last in-memory update.
	persistMu sync.Mutex
	backend   Backend
	log       *zap.SugaredLogger
}

type StoreOption func(*Store)

func WithStoreLogger(log *zap.SugaredLogger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// OpenStore loads whatever credential the backend holds. A backend that cannot
// be read yields an empty store; the read error is logged, not returned.
func OpenStore(ctx context.Context, backend Backend, opts ...StoreOption) (*Store, error) {
	if backend == nil {
		return nil, errors.New("credentials backend is required")
	}
	s := &Store{backend: backend, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	fields, err := backend.Load(ctx)
	if err != nil {
		s.log.Warnw("Failed to load stored credentials, starting without a session", "backend", backend.Name(), "error", err)
		return s, nil
	}
	if c, ok := credentialFromFields(fields); ok {
		s.current = &c
	} else if len(fields) > 0 {
		s.log.Debugw("Ignoring partial stored credential", "backend", backend.Name())
	}
	return s, nil
}

// NewMemoryStore returns an empty store backed by process memory.
func NewMemoryStore() *Store {
	return &Store{backend: NewMemoryBackend(), log: zap.NewNop().Sugar()}
}

func (s *Store) Get() (Credential, bool) {
	c, _, ok := s.Snapshot()
	return c, ok
}

// Snapshot returns the credential together with the store version it was
// read at.
func (s *Store) Snapshot() (Credential, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Credential{}, s.version, false
	}
	return *s.current, s.version, true
}

// Version returns the current store version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set replaces the stored credential. The in-memory value is replaced even
// when the backend write fails; the backend error is returned.
func (s *Store) Set(ctx context.Context, c Credential) error {
	if !c.Valid() {
		return ErrPartialCredential
	}
	_, err := s.replace(ctx, &c, nil)
	return err
}

// CompareAndSet replaces the credential only if the store is still at version.
// It reports whether the credential was replaced.
func (s *Store) CompareAndSet(ctx context.Context, version uint64, c Credential) (bool, error) {
	if !c.Valid() {
		return false, ErrPartialCredential
	}
	return s.replace(ctx, &c, &version)
}

// Clear removes the credential. The in-memory value is always dropped, even
// when the backend fails to erase.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.replace(ctx, nil, nil)
	return err
}

// CompareAndClear removes the credential only if the store is still at
// version. It reports whether the credential was removed.
func (s *Store) CompareAndClear(ctx context.Context, version uint64) (bool, error) {
	return s.replace(ctx, nil, &version)
}

// replace swaps the in-memory credential under mu and then persists it with
// only persistMu held, so readers are not blocked by backend I/O.
func (s *Store) replace(ctx context.Context, next *Credential, expected *uint64) (bool, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if expected != nil && *expected != s.version {
		s.mu.Unlock()
		return false, nil
	}
	s.current = next
	s.version++
	s.mu.Unlock()

	if next == nil {
		if err := s.backend.Erase(ctx); err != nil {
			return true, fmt.Errorf("failed to clear credential: %w", err)
		}
		return true, nil
	}
	if err := s.backend.Save(ctx, next.fields()); err != nil {
		return true, fmt.Errorf("failed to store credential: %w", err)
	}
	return true, nil
}

func (s *Store) Backend() Backend {
	return s.backend
}
