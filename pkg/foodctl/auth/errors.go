package auth

import (
	"errors"
	"fmt"
)

// Reason classifies why a refresh failed.
type Reason string

const (
	NoRefreshToken   Reason = "NoRefreshToken"
	ExchangeRejected Reason = "ExchangeRejected"
	Network          Reason = "Network"
	Malformed        Reason = "Malformed"
)

var (
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrExchangeRejected = errors.New("refresh token rejected")
	ErrNetwork          = errors.New("network failure")
	ErrMalformed        = errors.New("malformed token response")
)

var reasonSentinels = map[Reason]error{
	NoRefreshToken:   ErrNoRefreshToken,
	ExchangeRejected: ErrExchangeRejected,
	Network:          ErrNetwork,
	Malformed:        ErrMalformed,
}

// RefreshError is returned by the coordinator and the token service when a
// token exchange does not produce a usable credential.
type RefreshError struct {
	Reason Reason
	Err    error

	// Username is the owner of the credential the exchange was attempted for.
	Username string
	// StoreVersion is the credential store version after the failure was
	// handled. A store that has moved past it holds a newer session.
	StoreVersion uint64
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("refresh failed (%s)", e.Reason)
	}
	return fmt.Sprintf("refresh failed (%s): %v", e.Reason, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's reason, so callers can write
// errors.Is(err, auth.ErrExchangeRejected).
func (e *RefreshError) Is(target error) bool {
	sentinel, ok := reasonSentinels[e.Reason]
	return ok && sentinel == target
}

// Terminal reports whether the failure ends the session. Network failures
// leave the stored credential in place.
func (e *RefreshError) Terminal() bool {
	return e.Reason != Network
}

// ReasonOf extracts the refresh failure reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr.Reason, true
	}
	return "", false
}

func refreshFailure(reason Reason, err error) *RefreshError {
	return &RefreshError{Reason: reason, Err: err}
}
