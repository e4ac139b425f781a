package devserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vnfood/foodctl/pkg/ratelimit"
	"github.com/vnfood/foodctl/pkg/system"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Secret = "test-secret"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.DisableRateLimit = true
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(system.NewTestZapLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return doJSONWithHeaders(t, s, method, path, headers, body)
}

func doJSONWithHeaders(t *testing.T, s *Server, method, path string, headers map[string]string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func login(t *testing.T, s *Server, username, password string) (string, string) {
	t.Helper()
	code, _ := doJSON(t, s, http.MethodPost, "/api/register", "", credentialsRequest{Username: username, Password: password})
	require.Equal(t, http.StatusCreated, code)
	code, body := doJSON(t, s, http.MethodPost, "/api/login", "", credentialsRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, code)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	access, refresh := login(t, s, "lan", "secret")
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	code, body := doJSON(t, s, http.MethodGet, "/api/verify", access, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "lan", body["username"])
	assert.Equal(t, true, body["success"])
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/register", "", credentialsRequest{Username: "lan"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	login(t, s, "lan", "secret")
	code, _ = doJSON(t, s, http.MethodPost, "/api/register", "", credentialsRequest{Username: "lan", Password: "other"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	login(t, s, "lan", "secret")

	code, body := doJSON(t, s, http.MethodPost, "/api/login", "", credentialsRequest{Username: "lan", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid username or password", body["error"])
}

func TestLoginResponseShape(t *testing.T) {
	s := newTestServer(t)
	login(t, s, "lan", "secret")

	_, body := doJSON(t, s, http.MethodPost, "/api/login", "", credentialsRequest{Username: "lan", Password: "secret"})
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(15*60), body["expires_in"])
	assert.Equal(t, "lan", body["username"])
}

func TestVerifyRequiresBearer(t *testing.T) {
	s := newTestServer(t)
	code, _ := doJSON(t, s, http.MethodGet, "/api/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = doJSON(t, s, http.MethodGet, "/api/verify", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	s := newTestServer(t)
	access, refresh := login(t, s, "lan", "secret")

	s.ExpireAccessTokens()
	code, _ := doJSON(t, s, http.MethodGet, "/api/verify", access, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, code)
	renewed := body["access_token"].(string)
	assert.NotEqual(t, access, renewed)
	assert.NotContains(t, body, "refresh_token")
	assert.Equal(t, int64(1), s.RefreshCount())

	code, _ = doJSON(t, s, http.MethodGet, "/api/verify", renewed, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRefreshRejections(t *testing.T) {
	s := newTestServer(t)
	access, refresh := login(t, s, "lan", "secret")

	code, _ := doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, code, "access token must not be accepted as refresh token")

	s.RejectRefresh(true)
	code, _ = doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
	s.RejectRefresh(false)

	s.RevokeRefreshTokens()
	code, _ = doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshTokenFromOtherSecretRejected(t *testing.T) {
	other := newTestServer(t, func(c *Config) { c.Secret = "other-secret" })
	_, refresh := login(t, other, "lan", "secret")

	s := newTestServer(t)
	code, _ := doJSON(t, s, http.MethodPost, "/api/refresh", "", refreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHistoryLifecycle(t *testing.T) {
	s := newTestServer(t)
	access, _ := login(t, s, "lan", "secret")

	code, _ := doJSON(t, s, http.MethodGet, "/api/history", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	var ids []string
	for _, food := range []string{"Phở", "Bánh mì"} {
		code, body := doJSON(t, s, http.MethodPost, "/api/history", access, saveHistoryRequest{
			FoodName:   food,
			Confidence: 91.5,
			Extra:      map[string]any{"language": "VN"},
		})
		require.Equal(t, http.StatusCreated, code)
		item := body["item"].(map[string]any)
		ids = append(ids, item["_id"].(string))
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/history", access, nil)
	require.Equal(t, http.StatusOK, code)
	history := body["history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "Bánh mì", history[0].(map[string]any)["food_name"], "newest first")

	code, body = doJSON(t, s, http.MethodGet, "/api/history?limit=1", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"].([]any), 1)

	code, _ = doJSON(t, s, http.MethodDelete, "/api/history/"+ids[0], access, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, s, http.MethodDelete, "/api/history/"+ids[0], access, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, s, http.MethodDelete, "/api/history", access, nil)
	assert.Equal(t, http.StatusOK, code)
	_, body = doJSON(t, s, http.MethodGet, "/api/history", access, nil)
	assert.Empty(t, body["history"])
}

func TestHistorySaveRequiresFoodName(t *testing.T) {
	s := newTestServer(t)
	access, _ := login(t, s, "lan", "secret")
	code, _ := doJSON(t, s, http.MethodPost, "/api/history", access, saveHistoryRequest{Confidence: 10})
	assert.Equal(t, http.StatusBadRequest, code)
}

func predict(t *testing.T, s *Server, token string, image []byte, lang string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if image != nil {
		part, err := w.CreateFormFile("image", "dish.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	if lang != "" {
		require.NoError(t, w.WriteField("lang", lang))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestPredictIsDeterministic(t *testing.T) {
	s := newTestServer(t)
	image := []byte("not really a jpeg")

	code, first := predict(t, s, "", image, "")
	require.Equal(t, http.StatusOK, code)
	_, second := predict(t, s, "", image, "")
	assert.Equal(t, first["food_name"], second["food_name"])
	assert.Equal(t, first["confidence"], second["confidence"])
	assert.Len(t, first["related"], topK-1)

	_, english := predict(t, s, "", image, "EN")
	info := english["food_info"].(map[string]any)
	assert.NotEqual(t, first["food_info"].(map[string]any)["description"], info["description"])
}

func TestPredictRecordsHistoryWithSession(t *testing.T) {
	s := newTestServer(t)
	access, _ := login(t, s, "lan", "secret")

	code, _ := predict(t, s, "", []byte("anonymous"), "")
	require.Equal(t, http.StatusOK, code)
	code, result := predict(t, s, access, []byte("with session"), "")
	require.Equal(t, http.StatusOK, code)

	_, body := doJSON(t, s, http.MethodGet, "/api/history", access, nil)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	item := history[0].(map[string]any)
	assert.Equal(t, result["food_name"], item["food_name"])
	assert.NotEmpty(t, item["image_base64"])
}

func TestPredictWithExpiredTokenStillAnswers(t *testing.T) {
	s := newTestServer(t)
	access, _ := login(t, s, "lan", "secret")
	s.ExpireAccessTokens()

	code, _ := predict(t, s, access, []byte("image"), "")
	assert.Equal(t, http.StatusOK, code)
}

func TestPredictRequiresImage(t *testing.T) {
	s := newTestServer(t)
	code, body := predict(t, s, "", nil, "VN")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No image provided", body["error"])
}

func TestFoodEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodGet, "/api/foods/search?region=Nam&per_page=2&page=9", "", nil)
	require.Equal(t, http.StatusOK, code)
	pages := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pages["page"], "page is clamped")
	assert.Equal(t, float64(4), pages["total"])
	assert.Equal(t, false, pages["has_next"])
	assert.Equal(t, true, pages["has_prev"])

	code, body = doJSON(t, s, http.MethodGet, "/api/foods/search?search=ph%E1%BB%9F", "", nil)
	require.Equal(t, http.StatusOK, code)
	foods := body["foods"].([]any)
	require.NotEmpty(t, foods)
	assert.Equal(t, "Phở", foods[0].(map[string]any)["id"])

	code, body = doJSON(t, s, http.MethodGet, "/api/food/B%C3%A1nh%20m%C3%AC?lang=EN", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Banh mi", body["food"].(map[string]any)["name"])

	code, _ = doJSON(t, s, http.MethodGet, "/api/food/pizza", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, s, http.MethodGet, "/api/foods/search?per_page=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCredentialRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.DisableRateLimit = false
		c.CredentialLimit = ratelimit.Config{Rate: 0.001, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute}
	})

	for i := 0; i < 2; i++ {
		code, _ := doJSON(t, s, http.MethodPost, "/api/login", "", credentialsRequest{Username: "x", Password: "y"})
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, _ := doJSON(t, s, http.MethodPost, "/api/login", "", credentialsRequest{Username: "x", Password: "y"})
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = doJSON(t, s, http.MethodGet, "/api/foods/search", "", nil)
	assert.Equal(t, http.StatusOK, code, "catalog uses the API limit")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foodctl_")
}

func TestWebRootFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>foodctl</html>"), 0o600))
	s := newTestServer(t, func(c *Config) { c.WebRoot = dir })

	req := httptest.NewRequest(http.MethodGet, "/history/some-id", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foodctl")

	code, _ := doJSON(t, s, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLSCertFile = "cert.pem"
	_, err := New(nil, cfg)
	assert.Error(t, err)
}
