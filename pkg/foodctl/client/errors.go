package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Reason string

const (
	SessionExpired Reason = "SessionExpired"
	Network        Reason = "Network"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNetwork        = errors.New("network failure")
)

// RequestError is returned by Send when a request could not be completed on
// behalf of the session.
type RequestError struct {
	Reason Reason
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request failed (%s)", e.Reason)
	}
	return fmt.Sprintf("request failed (%s): %v", e.Reason, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	switch e.Reason {
	case SessionExpired:
		return target == ErrSessionExpired
	case Network:
		return target == ErrNetwork
	}
	return false
}

// IsSessionExpired reports whether err means the user has to log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// HTTPError is a response with status >= 400 returned through the typed
// service helpers.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

func decodeError(resp *Response) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(resp.Body) > 0 {
		_ = json.Unmarshal(resp.Body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(resp.Body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}
