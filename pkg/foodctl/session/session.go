package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/metrics"
)

type State string

const (
	Unknown         State = "UNKNOWN"
	Authenticated   State = "AUTHENTICATED"
	Unauthenticated State = "UNAUTHENTICATED"
)

// Session is the login state machine over a credential store.
type Session struct {
	mu    sync.Mutex
	state State
	store *auth.Store
	sink  Sink
	log   *zap.SugaredLogger
	now   func() time.Time
}

type Option func(*Session)

func WithSink(sink Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

func New(store *auth.Store, opts ...Option) *Session {
	s := &Session{
		state: Unknown,
		store: store,
		sink:  SinkFunc(func(context.Context, Event) {}),
		log:   zap.NewNop().Sugar(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentState resolves Unknown from the store on first use. An authenticated
// session whose credential has since been removed reports Unauthenticated.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasCredential := s.store.Get()
	switch s.state {
	case Unknown:
		if hasCredential {
			s.state = Authenticated
		} else {
			s.state = Unauthenticated
		}
	case Authenticated:
		if !hasCredential {
			return Unauthenticated
		}
	}
	return s.state
}

// Login stores the credential and marks the session authenticated. A backend
// write error is returned after the session has been established in memory.
func (s *Session) Login(ctx context.Context, accessToken, refreshToken, username string) error {
	err := s.store.Set(ctx, auth.Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     username,
	})
	if errors.Is(err, auth.ErrPartialCredential) {
		return err
	}
	s.mu.Lock()
	s.state = Authenticated
	s.mu.Unlock()
	s.log.Infow("Session started", "username", username)
	return err
}

// Logout clears the credential and always notifies the sink.
func (s *Session) Logout(ctx context.Context) error {
	username := s.username()
	err := s.store.Clear(ctx)

	s.mu.Lock()
	s.state = Unauthenticated
	s.mu.Unlock()

	s.notify(ctx, Event{Reason: ReasonLogout, Username: username, At: s.now()})
	return err
}

// Expire ends the session after a failed refresh. Only the first call for a
// live session notifies the sink; it reports whether it did.
//
// When cause is an *auth.RefreshError and the store has since been given a new
// credential, the failure belongs to a session that no longer exists and
// Expire does nothing.
func (s *Session) Expire(ctx context.Context, cause error) bool {
	cred, version, hasCredential := s.store.Snapshot()
	username := cred.Username

	var refreshErr *auth.RefreshError
	if errors.As(cause, &refreshErr) {
		if hasCredential && version != refreshErr.StoreVersion {
			s.log.Debugw("Ignoring refresh failure from a replaced session", "username", refreshErr.Username)
			return false
		}
		if username == "" {
			username = refreshErr.Username
		}
	}

	s.mu.Lock()
	if s.state == Unauthenticated {
		s.mu.Unlock()
		return false
	}
	s.state = Unauthenticated
	s.mu.Unlock()

	if hasCredential {
		cleared, err := s.store.CompareAndClear(ctx, version)
		if err != nil {
			s.log.Warnw("Failed to clear credentials on session expiry", "error", err)
		}
		if !cleared {
			// a login or logout got there first; resolve the state again
			s.mu.Lock()
			s.state = Unknown
			s.mu.Unlock()
			return false
		}
	}
	s.notify(ctx, Event{Reason: ReasonExpired, Username: username, At: s.now(), Cause: cause})
	return true
}

func (s *Session) username() string {
	if c, ok := s.store.Get(); ok {
		return c.Username
	}
	return ""
}

func (s *Session) notify(ctx context.Context, ev Event) {
	metrics.SessionEnded.WithLabelValues(string(ev.Reason)).Inc()
	s.log.Infow("Session ended", "reason", ev.Reason, "username", ev.Username)
	s.sink.SessionEnded(ctx, ev)
}
