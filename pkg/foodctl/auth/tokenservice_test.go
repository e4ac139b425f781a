package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *TokenService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	svc, err := NewTokenService(ts.URL + "/api")
	require.NoError(t, err)
	return svc
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestTokenServiceLogin(t *testing.T) {
	svc := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req credentialsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid username or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"access_token":  "A1",
			"refresh_token": "R1",
			"username":      "Lan",
		})
	})

	cred, err := svc.Login(t.Context(), "lan", "secret")
	require.NoError(t, err)
	assert.Equal(t, Credential{AccessToken: "A1", RefreshToken: "R1", Username: "Lan"}, cred)

	_, err = svc.Login(t.Context(), "lan", "wrong")
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusUnauthorized, serviceErr.StatusCode)
	assert.Equal(t, "Invalid username or password", serviceErr.Message)
}

func TestTokenServiceLoginFailureWithSuccessStatus(t *testing.T) {
	svc := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "nope"})
	})
	_, err := svc.Login(t.Context(), "lan", "secret")
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "nope", serviceErr.Message)
}

func TestTokenServiceLoginMissingTokens(t *testing.T) {
	svc := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "access_token": "A1"})
	})
	_, err := svc.Login(t.Context(), "lan", "secret")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTokenServiceRegister(t *testing.T) {
	svc := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		var req credentialsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username == "taken" {
			writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "Username already exists"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "User registered successfully"})
	})

	require.NoError(t, svc.Register(t.Context(), "lan", "secret"))

	err := svc.Register(t.Context(), "taken", "secret")
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusConflict, serviceErr.StatusCode)
}

func TestTokenServiceExchange(t *testing.T) {
	svc := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/refresh", r.URL.Path)
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "R1", req.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "A2", "token_type": "Bearer", "expires_in": 900})
	})

	got, err := svc.Exchange(t.Context(), "R1")
	require.NoError(t, err)
	assert.Equal(t, Exchange{AccessToken: "A2", ExpiresIn: 15 * time.Minute}, got)
}

func TestTokenServiceExchangeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		reason  Reason
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
			},
			reason: ExchangeRejected,
		},
		{
			name: "rejected with plain text body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
			reason: ExchangeRejected,
		},
		{
			name: "success without json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>ok</html>"))
			},
			reason: Malformed,
		},
		{
			name: "success without access token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"token_type": "Bearer"})
			},
			reason: Malformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTokenServer(t, tt.handler)
			_, err := svc.Exchange(t.Context(), "R1")
			reason, ok := ReasonOf(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestTokenServiceExchangeNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	svc, err := NewTokenService(ts.URL)
	require.NoError(t, err)
	ts.Close()

	_, err = svc.Exchange(t.Context(), "R1")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestTokenServiceSendsUserAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "foodctl/test", r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "A2"})
	}))
	t.Cleanup(ts.Close)
	svc, err := NewTokenService(ts.URL, WithServiceUserAgent("foodctl/test"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	_, err = svc.Exchange(t.Context(), "R1")
	require.NoError(t, err)
}

func TestNewTokenServiceRequiresServer(t *testing.T) {
	_, err := NewTokenService("")
	assert.Error(t, err)
}
