package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/foodctl/session"
	"github.com/vnfood/foodctl/pkg/telemetry"
)

const DefaultServer = "http://localhost:5000/api"

// Client is an API client bound to one session. It owns the credential store,
// the refresh coordinator and the session state machine for that session.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	log       *zap.SugaredLogger

	store       *auth.Store
	sink        session.Sink
	exchanger   auth.Exchanger
	tokens      *auth.TokenService
	coordinator *auth.Coordinator
	session     *session.Session
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "foodctl",
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	if c.store == nil {
		c.store = auth.NewMemoryStore()
	}
	traced := *c.http
	traced.Transport = telemetry.Transport(traced.Transport)
	c.http = &traced

	tokens, err := auth.NewTokenService(c.baseURL.String(),
		auth.WithHTTPClient(c.http),
		auth.WithServiceUserAgent(c.userAgent),
	)
	if err != nil {
		return nil, err
	}
	c.tokens = tokens
	if c.exchanger == nil {
		c.exchanger = tokens
	}
	c.coordinator = auth.NewCoordinator(c.store, c.exchanger, auth.WithCoordinatorLogger(c.log))
	c.session = session.New(c.store, session.WithSink(c.sink), session.WithLogger(c.log))
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		c.baseURL = parsed
		return nil
	}
}

// WithStore binds the client to an existing credential store. Without it the
// client keeps credentials in memory only.
func WithStore(store *auth.Store) Option {
	return func(c *Client) error {
		if store == nil {
			return errors.New("credential store is nil")
		}
		c.store = store
		return nil
	}
}

// WithSink sets the callback invoked when the session ends.
func WithSink(sink session.Sink) Option {
	return func(c *Client) error {
		c.sink = sink
		return nil
	}
}

// WithExchanger replaces the token service used for refresh exchanges.
func WithExchanger(exchanger auth.Exchanger) Option {
	return func(c *Client) error {
		c.exchanger = exchanger
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return errors.New("http client is nil")
		}
		c.http = httpClient
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = timeout
		return nil
	}
}

// WithTLSConfig applies TLS settings to the client's transport, keeping any
// HTTP client configured by an earlier option. The caller's client is copied,
// not modified.
func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		var transport *http.Transport
		switch base := c.http.Transport.(type) {
		case nil:
			transport = http.DefaultTransport.(*http.Transport).Clone()
		case *http.Transport:
			transport = base.Clone()
		default:
			return fmt.Errorf("cannot apply TLS settings to transport %T", base)
		}
		transport.TLSClientConfig = tlsConfig
		configured := *c.http
		configured.Transport = transport
		c.http = &configured
		return nil
	}
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// Login authenticates against the token service and starts a session.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Credential, error) {
	cred, err := c.tokens.Login(ctx, username, password)
	if err != nil {
		return auth.Credential{}, err
	}
	if err := c.session.Login(ctx, cred.AccessToken, cred.RefreshToken, cred.Username); err != nil {
		return cred, err
	}
	return cred, nil
}

// Logout ends the session and notifies the sink.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

func (c *Client) State() session.State {
	return c.session.CurrentState()
}

// Refresh renews the access token now. Failures other than network errors
// end the session.
func (c *Client) Refresh(ctx context.Context) (auth.Credential, error) {
	cred, err := c.coordinator.Refresh(ctx)
	if err != nil {
		c.expireOn(ctx, err)
		return auth.Credential{}, err
	}
	return cred, nil
}

// Credential returns the stored credential, if any.
func (c *Client) Credential() (auth.Credential, bool) {
	return c.store.Get()
}

// CredentialBackend returns the backend the session is persisted to.
func (c *Client) CredentialBackend() auth.Backend {
	return c.store.Backend()
}

// TokenSource exposes the session to oauth2-aware clients. A refresh failure
// that invalidates the credential ends the session as it does for Send.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, client: c, source: auth.NewTokenSource(ctx, c.store, c.coordinator)}
}

type sessionTokenSource struct {
	ctx    context.Context
	client *Client
	source oauth2.TokenSource
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		s.client.expireOn(s.ctx, err)
		return nil, err
	}
	return token, nil
}

// expireOn ends the session when err is a refresh failure that invalidates
// the credential. It reports whether err was such a failure.
func (c *Client) expireOn(ctx context.Context, err error) bool {
	var refreshErr *auth.RefreshError
	if !errors.As(err, &refreshErr) || !refreshErr.Terminal() {
		return false
	}
	c.session.Expire(ctx, err)
	return true
}
