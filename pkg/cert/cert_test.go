package cert

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readLeaf(t *testing.T, m *Manager) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(m.CertFile())
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	leaf, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return leaf
}

func TestNewManagerAppliesDefaults(t *testing.T) {
	mgr := NewManager("/tmp/certs", nil, 0, nil)

	assert.Equal(t, DefaultValidity, mgr.validity)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, mgr.hosts)
	assert.Equal(t, "/tmp/certs/tls.crt", mgr.CertFile())
	assert.Equal(t, "/tmp/certs/tls.key", mgr.KeyFile())
}

func TestEnsureGeneratesCertificate(t *testing.T) {
	dir := t.TempDir() + "/certs"
	mgr := NewManager(dir, []string{"localhost", "127.0.0.1", "food.local"}, time.Hour*24*30, zap.NewNop().Sugar())

	require.NoError(t, mgr.Ensure())

	_, err := tls.LoadX509KeyPair(mgr.CertFile(), mgr.KeyFile())
	require.NoError(t, err)
	leaf := readLeaf(t, mgr)
	assert.ElementsMatch(t, []string{"localhost", "food.local"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())
	assert.True(t, leaf.IsCA)

	info, err := os.Stat(mgr.KeyFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureReusesValidCertificate(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil, 0, nil)
	require.NoError(t, mgr.Ensure())
	first, err := os.ReadFile(mgr.CertFile())
	require.NoError(t, err)

	require.NoError(t, mgr.Ensure())
	second, err := os.ReadFile(mgr.CertFile())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureReplacesCertificates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, m *Manager)
	}{
		{
			name: "close to expiry",
			mutate: func(_ *testing.T, m *Manager) {
				m.now = func() time.Time { return time.Now().Add(DefaultValidity - 24*time.Hour) }
			},
		},
		{
			name: "corrupt file",
			mutate: func(t *testing.T, m *Manager) {
				require.NoError(t, os.WriteFile(m.CertFile(), []byte("garbage"), 0o644))
			},
		},
		{
			name: "new host",
			mutate: func(_ *testing.T, m *Manager) {
				m.hosts = append(m.hosts, "food.local")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(t.TempDir(), nil, 0, nil)
			require.NoError(t, mgr.Ensure())
			before, err := os.ReadFile(mgr.CertFile())
			require.NoError(t, err)

			tt.mutate(t, mgr)
			require.NoError(t, mgr.Ensure())

			after, err := os.ReadFile(mgr.CertFile())
			require.NoError(t, err)
			assert.NotEqual(t, before, after)
			require.NoError(t, mgr.check())
		})
	}
}

func TestGeneratedCertificateServesTLS(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil, 0, nil)
	require.NoError(t, mgr.Ensure())
	pair, err := tls.LoadX509KeyPair(mgr.CertFile(), mgr.KeyFile())
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	srv.StartTLS()
	defer srv.Close()

	caPEM, err := os.ReadFile(mgr.CertFile())
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(caPEM))
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
