package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vnfood/foodctl/pkg/metrics"
)

const refreshKey = "refresh"

// Coordinator runs at most one token exchange at a time. Callers that ask for
// a refresh while one is running wait for it and get the same result.
type Coordinator struct {
	store     *Store
	exchanger Exchanger
	group     singleflight.Group
	log       *zap.SugaredLogger
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(log *zap.SugaredLogger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

func NewCoordinator(store *Store, exchanger Exchanger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{store: store, exchanger: exchanger, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh exchanges the stored refresh token for a new access token, joining
// an exchange that is already in flight.
func (c *Coordinator) Refresh(ctx context.Context) (Credential, error) {
	return c.RefreshRejected(ctx, "")
}

// RefreshRejected is Refresh for a caller whose request was refused with
// rejected as its access token. If the store already holds a different access
// token, another caller has renewed it in the meantime and that credential is
// returned without a new exchange.
func (c *Coordinator) RefreshRejected(ctx context.Context, rejected string) (Credential, error) {
	current, version, ok := c.store.Snapshot()
	if !ok || current.RefreshToken == "" {
		metrics.TokenExchanges.WithLabelValues(string(NoRefreshToken)).Inc()
		return c.abandon(ctx, current, version, refreshFailure(NoRefreshToken, ErrNoRefreshToken))
	}
	if rejected != "" && current.AccessToken != rejected {
		c.log.Debugw("Access token already renewed, skipping exchange")
		return current, nil
	}

	// the exchange outlives any single waiter's context
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.exchange(flightCtx, rejected)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

// exchange trades the stored refresh token for a new access token. The result
// is committed only if the store still holds the credential the exchange
// started from; a logout or login that happened meanwhile wins.
func (c *Coordinator) exchange(ctx context.Context, rejected string) (Credential, error) {
	current, version, ok := c.store.Snapshot()
	if !ok || current.RefreshToken == "" {
		metrics.TokenExchanges.WithLabelValues(string(NoRefreshToken)).Inc()
		return c.abandon(ctx, current, version, refreshFailure(NoRefreshToken, ErrNoRefreshToken))
	}
	if rejected != "" && current.AccessToken != rejected {
		return current, nil
	}

	c.log.Debugw("Exchanging refresh token", "username", current.Username)
	result, err := c.exchanger.Exchange(ctx, current.RefreshToken)
	if err != nil {
		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) {
			refreshErr = refreshFailure(refreshErr.Reason, refreshErr.Err)
		} else {
			refreshErr = refreshFailure(Network, err)
		}
		metrics.TokenExchanges.WithLabelValues(string(refreshErr.Reason)).Inc()
		if !refreshErr.Terminal() {
			c.log.Warnw("Refresh token exchange failed, keeping credentials", "reason", refreshErr.Reason, "error", refreshErr.Err)
			refreshErr.Username = current.Username
			refreshErr.StoreVersion = version
			return Credential{}, refreshErr
		}
		c.log.Infow("Refresh token exchange failed, clearing credentials", "reason", refreshErr.Reason, "error", refreshErr.Err)
		return c.abandon(ctx, current, version, refreshErr)
	}
	if result.AccessToken == "" {
		metrics.TokenExchanges.WithLabelValues(string(Malformed)).Inc()
		return c.abandon(ctx, current, version, refreshFailure(Malformed, errors.New("exchange returned no access token")))
	}

	renewed := Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: current.RefreshToken,
		Username:     current.Username,
	}
	if result.RefreshToken != "" {
		renewed.RefreshToken = result.RefreshToken
	}
	committed, err := c.store.CompareAndSet(ctx, version, renewed)
	if err != nil {
		// memory already holds the new credential
		c.log.Warnw("Failed to persist refreshed credential", "error", err)
	}
	if !committed {
		metrics.TokenExchanges.WithLabelValues("discarded").Inc()
		c.log.Infow("Session changed during refresh, discarding exchanged token", "username", current.Username)
		if newer, ok := c.store.Get(); ok {
			return newer, nil
		}
		return Credential{}, &RefreshError{
			Reason:       NoRefreshToken,
			Err:          errors.New("session ended during refresh"),
			Username:     current.Username,
			StoreVersion: c.store.Version(),
		}
	}
	metrics.TokenExchanges.WithLabelValues("success").Inc()
	return renewed, nil
}

// abandon clears the credential a failed refresh was based on, unless the
// session was replaced in the meantime. A replacement credential is handed
// back to the caller in place of the failure.
func (c *Coordinator) abandon(ctx context.Context, based Credential, version uint64, refreshErr *RefreshError) (Credential, error) {
	refreshErr.Username = based.Username
	cleared, err := c.store.CompareAndClear(ctx, version)
	if err != nil {
		c.log.Warnw("Failed to clear credentials", "error", err)
	}
	if cleared {
		refreshErr.StoreVersion = version + 1
		return Credential{}, refreshErr
	}
	newer, currentVersion, ok := c.store.Snapshot()
	if ok {
		c.log.Infow("Session changed during refresh, keeping the new credential", "username", newer.Username)
		return newer, nil
	}
	refreshErr.StoreVersion = currentVersion
	return Credential{}, refreshErr
}
