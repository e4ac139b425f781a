package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/foodctl/session"
)

// fakeAPI accepts one access token at a time on /api/resource and hands out
// the next one on /api/refresh.
type fakeAPI struct {
	mu            sync.Mutex
	validToken    string
	nextToken     string
	rejectRefresh bool
	alwaysDeny    bool
	refreshDelay  time.Duration
	refreshing    chan struct{}
	refreshes     atomic.Int64
	authHeaders   []string
	requestIDs    []string
	bodies        []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if f.refreshing != nil {
			select {
			case f.refreshing <- struct{}{}:
			default:
			}
		}
		time.Sleep(f.refreshDelay)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rejectRefresh || req.RefreshToken != "R1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid refresh token"}`))
			return
		}
		f.validToken = f.nextToken
		_, _ = w.Write([]byte(`{"access_token":"` + f.nextToken + `","token_type":"Bearer","expires_in":900}`))
	})
	mux.HandleFunc("/api/resource", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.requestIDs = append(f.requestIDs, r.Header.Get(RequestIDHeader))
		f.bodies = append(f.bodies, string(body))
		ok := !f.alwaysDeny && r.Header.Get("Authorization") == "Bearer "+f.validToken
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Token has expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

type recordingSink struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *recordingSink) SessionEnded(_ context.Context, ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	api    *fakeAPI
	store  *auth.Store
	sink   *recordingSink
	client *Client
}

func newFixture(t *testing.T, api *fakeAPI, opts ...Option) *fixture {
	t.Helper()
	ts := httptest.NewServer(api.handler(t))
	t.Cleanup(ts.Close)

	store := auth.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), auth.Credential{AccessToken: "A1", RefreshToken: "R1", Username: "lan"}))
	sink := &recordingSink{}
	c, err := New(append([]Option{WithServer(ts.URL + "/api"), WithStore(store), WithSink(sink)}, opts...)...)
	require.NoError(t, err)
	return &fixture{api: api, store: store, sink: sink, client: c}
}

func get(t *testing.T, path string) *Request {
	t.Helper()
	req, err := NewJSONRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	return req
}

func TestSendRetriesOnceWithRenewedToken(t *testing.T) {
	f := newFixture(t, &fakeAPI{validToken: "A2-not-yet", nextToken: "A2"})

	resp, err := f.client.Send(t.Context(), get(t, "resource"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored, ok := f.store.Get()
	require.True(t, ok)
	assert.Equal(t, auth.Credential{AccessToken: "A2", RefreshToken: "R1", Username: "lan"}, stored)
	assert.Equal(t, int64(1), f.api.refreshes.Load())
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, f.api.authHeaders)
	require.Len(t, f.api.requestIDs, 2)
	assert.NotEmpty(t, f.api.requestIDs[0])
	assert.Equal(t, f.api.requestIDs[0], f.api.requestIDs[1], "the replay carries the same request id")
	assert.Zero(t, f.sink.count())
}

func TestSendReplaysBodyUnchanged(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2"})
	req, err := NewJSONRequest(http.MethodPost, "resource", map[string]string{"food_name": "Phở"})
	require.NoError(t, err)
	before := *req

	_, err = f.client.Send(t.Context(), req)
	require.NoError(t, err)
	require.Len(t, f.api.bodies, 2)
	assert.Equal(t, f.api.bodies[0], f.api.bodies[1])
	assert.JSONEq(t, `{"food_name":"Phở"}`, f.api.bodies[1])
	assert.Equal(t, before, *req)
}

func TestSendRejectedRefreshEndsSession(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2", rejectRefresh: true})

	_, err := f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	assert.ErrorIs(t, err, auth.ErrExchangeRejected)

	_, ok := f.store.Get()
	assert.False(t, ok)
	assert.Equal(t, session.Unauthenticated, f.client.State())
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, session.ReasonExpired, f.sink.events[0].Reason)
	assert.Equal(t, []string{"Bearer A1"}, f.api.authHeaders, "no replay after a failed refresh")
}

func TestSendConcurrentRejectionsShareOneRefresh(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2", refreshDelay: 50 * time.Millisecond})

	const callers = 10
	req := get(t, "resource")
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.client.Send(t.Context(), req)
			if err == nil && resp.StatusCode != http.StatusOK {
				err = errors.New(http.StatusText(resp.StatusCode))
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), f.api.refreshes.Load())
	stored, _ := f.store.Get()
	assert.Equal(t, "A2", stored.AccessToken)
}

func TestSendSecondRejectionDoesNotRefreshAgain(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2", alwaysDeny: true})

	_, err := f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	assert.Equal(t, int64(1), f.api.refreshes.Load())
	assert.Len(t, f.api.authHeaders, 2)
	stored, ok := f.store.Get()
	require.True(t, ok, "a rejected replay leaves the renewed credential in place")
	assert.Equal(t, "A2", stored.AccessToken)
	assert.Zero(t, f.sink.count())
}

type failingExchanger struct {
	calls atomic.Int64
	err   error
}

func (e *failingExchanger) Exchange(context.Context, string) (auth.Exchange, error) {
	e.calls.Add(1)
	return auth.Exchange{}, e.err
}

func TestSendNetworkRefreshFailureKeepsSession(t *testing.T) {
	ex := &failingExchanger{err: errors.New("dial tcp: connection refused")}
	f := newFixture(t, &fakeAPI{nextToken: "A2"}, WithExchanger(ex))

	_, err := f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.False(t, IsSessionExpired(err))

	stored, ok := f.store.Get()
	require.True(t, ok)
	assert.Equal(t, "A1", stored.AccessToken)
	assert.Equal(t, session.Authenticated, f.client.State())
	assert.Zero(t, f.sink.count())
}

func TestSendWithoutCredentialDoesNotExchange(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2"})
	require.NoError(t, f.store.Clear(t.Context()))

	_, err := f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	assert.ErrorIs(t, err, auth.ErrNoRefreshToken)
	assert.Zero(t, f.api.refreshes.Load())
	assert.Equal(t, []string{""}, f.api.authHeaders)
}

func TestSendReturnsOtherErrorsAsIs(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2"})

	resp, err := f.client.Send(t.Context(), get(t, "broken"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Zero(t, f.api.refreshes.Load())
}

func TestSendServerUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	c, err := New(WithServer(ts.URL))
	require.NoError(t, err)
	ts.Close()

	_, err = c.Send(t.Context(), get(t, "resource"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestSendNilRequest(t *testing.T) {
	c, err := New(WithServer("http://localhost:1"))
	require.NoError(t, err)
	_, err = c.Send(t.Context(), nil)
	assert.Error(t, err)
}

func TestNewJSONRequestKeepsQuery(t *testing.T) {
	req, err := NewJSONRequest(http.MethodGet, "history?limit=5", nil)
	require.NoError(t, err)
	assert.Equal(t, "history", req.Path)
	assert.Equal(t, "5", req.Query.Get("limit"))
	assert.Nil(t, req.Body)
}

func TestLogoutDuringRefreshStaysLoggedOut(t *testing.T) {
	api := &fakeAPI{nextToken: "A2", refreshDelay: 100 * time.Millisecond, refreshing: make(chan struct{}, 1)}
	f := newFixture(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := f.client.Send(t.Context(), get(t, "resource"))
		done <- err
	}()
	<-api.refreshing
	require.NoError(t, f.client.Logout(t.Context()))

	err := <-done
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	_, ok := f.store.Get()
	assert.False(t, ok, "the refreshed token is not written after logout")
	assert.Equal(t, session.Unauthenticated, f.client.State())

	_, err = f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	api.mu.Lock()
	lastAuth := api.authHeaders[len(api.authHeaders)-1]
	api.mu.Unlock()
	assert.Empty(t, lastAuth, "requests after logout carry no bearer token")

	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, session.ReasonLogout, f.sink.events[0].Reason)
}

func TestLoginDuringFailedRefreshKeepsNewSession(t *testing.T) {
	api := &fakeAPI{validToken: "B1", rejectRefresh: true, refreshDelay: 100 * time.Millisecond, refreshing: make(chan struct{}, 1)}
	f := newFixture(t, api)

	done := make(chan error, 1)
	go func() {
		resp, err := f.client.Send(t.Context(), get(t, "resource"))
		if err == nil && resp.StatusCode != http.StatusOK {
			err = errors.New(http.StatusText(resp.StatusCode))
		}
		done <- err
	}()
	<-api.refreshing
	require.NoError(t, f.client.session.Login(t.Context(), "B1", "S1", "minh"))

	require.NoError(t, <-done, "the request is replayed with the new session's token")
	stored, ok := f.store.Get()
	require.True(t, ok)
	assert.Equal(t, auth.Credential{AccessToken: "B1", RefreshToken: "S1", Username: "minh"}, stored)
	assert.Equal(t, session.Authenticated, f.client.State())
	assert.Zero(t, f.sink.count())
}

func TestExpiredSessionReportsUsername(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextToken: "A2", rejectRefresh: true})

	_, err := f.client.Send(t.Context(), get(t, "resource"))
	require.Error(t, err)
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, session.ReasonExpired, f.sink.events[0].Reason)
	assert.Equal(t, "lan", f.sink.events[0].Username)
}
