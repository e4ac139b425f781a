package client

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
	"strconv"

	"github.com/google/uuid"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/metrics"
)

const RequestIDHeader = "X-Request-ID"

// Request is a replayable API call. Path is relative to the client's server.
// Send never modifies it.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// NewJSONRequest encodes body as JSON. A nil body sends no payload.
func NewJSONRequest(method, endpoint string, body any) (*Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	req := &Request{Method: method, Path: parsed.Path, Query: parsed.Query()}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		req.Body = payload
		req.ContentType = "application/json"
	}
	return req, nil
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// attempt is the per-call retry state. It is passed by value and replaced,
// never updated, when the request is replayed.
type attempt struct {
	retries   int
	token     string
	requestID string
}

func (a attempt) next(token string) attempt {
	return attempt{retries: a.retries + 1, token: token, requestID: a.requestID}
}

// Send performs req with the session's access token. A 401 on the first
// attempt renews the token through the coordinator and replays the request
// once with the new token; the replay's response is returned as is unless it
// is another 401.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	first := attempt{requestID: uuid.NewString()}
	if cred, ok := c.store.Get(); ok {
		first.token = cred.AccessToken
	}
	return c.send(ctx, req, first)
}

func (c *Client) send(ctx context.Context, req *Request, a attempt) (*Response, error) {
	resp, err := c.roundTrip(ctx, req, a)
	if err != nil {
		return nil, &RequestError{Reason: Network, Err: err}
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if a.retries > 0 {
		c.log.Infow("Request rejected again after token refresh", "path", req.Path, "requestID", a.requestID)
		return nil, &RequestError{Reason: SessionExpired, Err: decodeError(resp)}
	}

	c.log.Debugw("Access token rejected, refreshing", "path", req.Path, "requestID", a.requestID)
	renewed, err := c.coordinator.RefreshRejected(ctx, a.token)
	if err != nil {
		reason, ok := auth.ReasonOf(err)
		switch {
		case !ok:
			return nil, err
		case reason == auth.Network:
			return nil, &RequestError{Reason: Network, Err: err}
		default:
			c.expireOn(ctx, err)
			return nil, &RequestError{Reason: SessionExpired, Err: err}
		}
	}

	metrics.RequestRetries.Inc()
	return c.send(ctx, req, a.next(renewed.AccessToken))
}

func (c *Client) roundTrip(ctx context.Context, req *Request, a attempt) (*Response, error) {
	fullURL := *c.baseURL
	fullURL.Path = path.Join(fullURL.Path, req.Path)
	if len(req.Query) > 0 {
		fullURL.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.Header.Set(RequestIDHeader, a.requestID)
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	metrics.Requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: content}, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	req, err := NewJSONRequest(method, endpoint, body)
	if err != nil {
		return err
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.DecodeJSON(out)
}
