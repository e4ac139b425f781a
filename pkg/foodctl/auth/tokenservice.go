package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Exchanger trades a refresh token for a new access token.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (Exchange, error)
}

// Exchange is the result of a successful refresh. RefreshToken is empty when
// the token service did not rotate it.
type Exchange struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// ServiceError is a non-success answer from the token service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("token service request failed (%d): %s", e.StatusCode, e.Message)
}

type tokenResponse struct {
	Success      *bool  `json:"success,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Username     string `json:"username"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenService talks to the /login, /register and /refresh endpoints.
type TokenService struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

type TokenServiceOption func(*TokenService)

func WithHTTPClient(c *http.Client) TokenServiceOption {
	return func(s *TokenService) {
		if c != nil {
			s.http = c
		}
	}
}

func WithServiceUserAgent(userAgent string) TokenServiceOption {
	return func(s *TokenService) {
		s.userAgent = userAgent
	}
}

func NewTokenService(server string, opts ...TokenServiceOption) (*TokenService, error) {
	if server == "" {
		return nil, errors.New("server is required")
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server: %w", err)
	}
	s := &TokenService{
		baseURL:   parsed,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "foodctl",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login exchanges a username and password for a credential.
func (s *TokenService) Login(ctx context.Context, username, password string) (Credential, error) {
	resp, status, err := s.post(ctx, "login", credentialsRequest{Username: username, Password: password})
	if err != nil {
		return Credential{}, fmt.Errorf("login failed: %w", err)
	}
	if !succeeded(status, resp) {
		return Credential{}, &ServiceError{StatusCode: status, Message: resp.message(status)}
	}
	c := Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken, Username: resp.Username}
	if c.Username == "" {
		c.Username = username
	}
	if !c.Valid() {
		return Credential{}, fmt.Errorf("login response is missing tokens: %w", ErrMalformed)
	}
	return c, nil
}

// Register creates an account. It does not log in.
func (s *TokenService) Register(ctx context.Context, username, password string) error {
	resp, status, err := s.post(ctx, "register", credentialsRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	if !succeeded(status, resp) {
		return &ServiceError{StatusCode: status, Message: resp.message(status)}
	}
	return nil
}

// Exchange implements Exchanger. Failures are always *RefreshError.
func (s *TokenService) Exchange(ctx context.Context, refreshToken string) (Exchange, error) {
	resp, status, err := s.post(ctx, "refresh", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			return Exchange{}, refreshFailure(Malformed, err)
		}
		return Exchange{}, refreshFailure(Network, err)
	}
	if !succeeded(status, resp) {
		return Exchange{}, refreshFailure(ExchangeRejected, &ServiceError{StatusCode: status, Message: resp.message(status)})
	}
	if resp.AccessToken == "" {
		return Exchange{}, refreshFailure(Malformed, errors.New("response has no access_token"))
	}
	return Exchange{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return fmt.Sprintf("failed to decode response: %v", e.err) }

func (e *decodeError) Unwrap() error { return e.err }

func (s *TokenService) post(ctx context.Context, endpoint string, body any) (*tokenResponse, int, error) {
	fullURL := *s.baseURL
	fullURL.Path = path.Join(fullURL.Path, endpoint)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var out tokenResponse
	if err := json.Unmarshal(content, &out); err != nil {
		// error bodies are not always JSON; the status alone decides those
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &tokenResponse{}, resp.StatusCode, nil
		}
		return nil, resp.StatusCode, &decodeError{err: err}
	}
	return &out, resp.StatusCode, nil
}

func succeeded(status int, resp *tokenResponse) bool {
	if status < 200 || status >= 300 {
		return false
	}
	return resp.Success == nil || *resp.Success
}

func (r *tokenResponse) message(status int) string {
	for _, msg := range []string{r.Message, r.Error} {
		if msg = strings.TrimSpace(msg); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request rejected"
}
