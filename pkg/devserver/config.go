package devserver

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vnfood/foodctl/pkg/audit"
	"github.com/vnfood/foodctl/pkg/ratelimit"
)

const (
	DefaultListenAddress = ":5000"
	DefaultAccessTTL     = 15 * time.Minute
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultHistoryLimit  = 20
	DefaultPerPage       = 12
	DefaultAuditTopic    = "foodctl-audit"
)

type Config struct {
	ListenAddress string
	TLSCertFile   string
	TLSKeyFile    string
	// Secret signs tokens. An empty secret is replaced by a random one, so
	// tokens do not survive a restart.
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int

	// WebRoot, when set, is served for every path outside /api.
	WebRoot     string
	CORSOrigins []string

	DisableRateLimit bool
	APILimit         ratelimit.Config
	CredentialLimit  ratelimit.Config

	Audit AuditConfig

	Debug bool
}

// AuditConfig selects where audit events go besides the server log.
type AuditConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	// Sinks are extra destinations, written after the log and Kafka sinks.
	Sinks []audit.Sink
}

func DefaultConfig() Config {
	return Config{
		ListenAddress:   DefaultListenAddress,
		AccessTTL:       DefaultAccessTTL,
		RefreshTTL:      DefaultRefreshTTL,
		BcryptCost:      bcrypt.DefaultCost,
		APILimit:        ratelimit.DefaultAPIConfig(),
		CredentialLimit: ratelimit.DefaultCredentialConfig(),
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.AccessTTL == 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.APILimit.Rate == 0 {
		c.APILimit = ratelimit.DefaultAPIConfig()
	}
	if c.Audit.KafkaTopic == "" {
		c.Audit.KafkaTopic = DefaultAuditTopic
	}
	if c.CredentialLimit.Rate == 0 {
		c.CredentialLimit = ratelimit.DefaultCredentialConfig()
	}
}

func (c Config) validate() error {
	if c.AccessTTL < 0 || c.RefreshTTL < 0 {
		return errors.New("token lifetimes must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls cert and key must be set together")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.New("bcrypt cost out of range")
	}
	return nil
}
