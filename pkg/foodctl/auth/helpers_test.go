package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

// fakeExchanger records exchanges and answers with the configured result.
type fakeExchanger struct {
	mu      sync.Mutex
	calls   atomic.Int64
	seen    []string
	result  Exchange
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeExchanger) Exchange(ctx context.Context, refreshToken string) (Exchange, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return Exchange{}, ctx.Err()
		}
	}
	return f.result, f.err
}

// failingBackend accepts loads but fails every write.
type failingBackend struct {
	*MemoryBackend
}

var errBackendDown = errors.New("backend down")

func (f *failingBackend) Save(context.Context, map[string]string) error { return errBackendDown }

func (f *failingBackend) Erase(context.Context) error { return errBackendDown }

// blockingBackend holds every Save until release is closed.
type blockingBackend struct {
	*MemoryBackend
	saving  chan struct{}
	release chan struct{}
}

func newBlockingBackend() *blockingBackend {
	return &blockingBackend{
		MemoryBackend: NewMemoryBackend(),
		saving:        make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
}

func (b *blockingBackend) Save(ctx context.Context, fields map[string]string) error {
	select {
	case b.saving <- struct{}{}:
	default:
	}
	<-b.release
	return b.MemoryBackend.Save(ctx, fields)
}

func storeWith(t *testing.T, c Credential) *Store {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.Set(t.Context(), c))
	return s
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	now := time.Now()
	return signedToken(t, jwt.MapClaims{
		"sub":      "lan",
		"username": "lan",
		"type":     "access",
		"iat":      now.Unix(),
		"exp":      now.Add(d).Unix(),
	})
}
