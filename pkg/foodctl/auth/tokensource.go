package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

const defaultExpiryLeeway = 2 * time.Minute

// TokenSource exposes the stored credential as an oauth2.TokenSource. Tokens
// that expire within the leeway are renewed through the coordinator first, so
// oauth2-aware HTTP clients can share the session.
type TokenSource struct {
	ctx         context.Context
	store       *Store
	coordinator *Coordinator
	leeway      time.Duration
	now         func() time.Time
}

func NewTokenSource(ctx context.Context, store *Store, coordinator *Coordinator) *TokenSource {
	return &TokenSource{
		ctx:         ctx,
		store:       store,
		coordinator: coordinator,
		leeway:      defaultExpiryLeeway,
		now:         time.Now,
	}
}

func (s *TokenSource) Token() (*oauth2.Token, error) {
	cred, version, ok := s.store.Snapshot()
	if !ok {
		refreshErr := refreshFailure(NoRefreshToken, ErrNoRefreshToken)
		refreshErr.StoreVersion = version
		return nil, refreshErr
	}
	token := OAuth2Token(cred)
	if token.Expiry.IsZero() || token.Expiry.Sub(s.now()) > s.leeway {
		return token, nil
	}
	renewed, err := s.coordinator.RefreshRejected(s.ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	return OAuth2Token(renewed), nil
}

// OAuth2Token converts a credential, taking the expiry from the access token
// when it is a JWT.
func OAuth2Token(c Credential) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if claims, err := ParseClaims(c.AccessToken); err == nil {
		token.Expiry = claims.ExpiresAt
	}
	return token
}
