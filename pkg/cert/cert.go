package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTLSCertFile = "tls.crt"
	DefaultTLSKeyFile  = "tls.key"

	DefaultValidity = 90 * 24 * time.Hour
	// certificates closer than this to expiry are replaced by Ensure
	renewBefore = 7 * 24 * time.Hour
)

// Manager keeps a self-signed serving certificate for the dev server in a
// directory. The certificate is its own CA, so clients trust it by using
// CertFile as their CA file.
type Manager struct {
	path     string
	hosts    []string
	validity time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

func NewManager(path string, hosts []string, validity time.Duration, log *zap.SugaredLogger) *Manager {
	if validity <= 0 {
		validity = DefaultValidity
	}
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		path:     path,
		hosts:    hosts,
		validity: validity,
		now:      time.Now,
		log:      log.With("component", "DevServerCertManager"),
	}
}

func (m *Manager) CertFile() string {
	return path.Join(m.path, DefaultTLSCertFile)
}

func (m *Manager) KeyFile() string {
	return path.Join(m.path, DefaultTLSKeyFile)
}

// Ensure reuses the certificate in the directory when it loads, covers every
// host and is not about to expire. Otherwise a new pair is written.
func (m *Manager) Ensure() error {
	if err := m.check(); err == nil {
		m.log.Debugw("Reusing existing certificate", "cert", m.CertFile())
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		m.log.Infow("Replacing certificate", "cert", m.CertFile(), "reason", err.Error())
	}
	if err := m.generate(); err != nil {
		return fmt.Errorf("failed to generate certificate: %w", err)
	}
	m.log.Infow("Generated self-signed certificate", "cert", m.CertFile(), "hosts", m.hosts)
	return nil
}

func (m *Manager) check() error {
	pair, err := tls.LoadX509KeyPair(m.CertFile(), m.KeyFile())
	if err != nil {
		return err
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return err
	}
	if m.now().Add(renewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("certificate expires at %s", leaf.NotAfter.Format(time.RFC3339))
	}
	for _, host := range m.hosts {
		if err := leaf.VerifyHostname(host); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) generate() error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	now := m.now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"foodctl"}, CommonName: "foodctl dev server"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(m.validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, host := range m.hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.path, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(m.KeyFile(), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		return err
	}
	return os.WriteFile(m.CertFile(), pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644)
}
