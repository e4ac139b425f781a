package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
)

const (
	VersionV1 = "v1"

	DefaultServer   = "http://localhost:5000/api"
	DefaultLanguage = "VN"
	DefaultTimeout  = 30 * time.Second
)

type Config struct {
	Version     string      `yaml:"version"`
	Server      string      `yaml:"server,omitempty"`
	Credentials Credentials `yaml:"credentials,omitempty"`
	Events      Events      `yaml:"events,omitempty"`
	Settings    Settings    `yaml:"settings,omitempty"`
}

// Credentials selects where the session tokens are persisted.
type Credentials struct {
	Backend        string `yaml:"backend,omitempty"`
	Path           string `yaml:"path,omitempty"`
	KeyringService string `yaml:"keyring-service,omitempty"`
	RedisAddr      string `yaml:"redis-addr,omitempty"`
	RedisPassword  string `yaml:"redis-password,omitempty"`
	RedisDB        int    `yaml:"redis-db,omitempty"`
	RedisKey       string `yaml:"redis-key,omitempty"`
	RedisTTL       string `yaml:"redis-ttl,omitempty"`
}

// Events configures publishing of session-ended events to a redis stream.
// Publishing is off when RedisURL is empty.
type Events struct {
	RedisURL string `yaml:"redis-url,omitempty"`
	Topic    string `yaml:"topic,omitempty"`
}

type Settings struct {
	OutputFormat          string `yaml:"output-format,omitempty"`
	Timeout               string `yaml:"timeout,omitempty"`
	Language              string `yaml:"language,omitempty"`
	CAFile                string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Server:  DefaultServer,
		Credentials: Credentials{
			Backend: auth.BackendFile,
		},
		Settings: Settings{
			OutputFormat: "table",
			Timeout:      DefaultTimeout.String(),
			Language:     DefaultLanguage,
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns DefaultConfig when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported config version: %s", c.Version)
	}
	switch c.Credentials.Backend {
	case "", auth.BackendFile, auth.BackendMemory, auth.BackendKeyring:
	case auth.BackendRedis:
		if strings.TrimSpace(c.Credentials.RedisAddr) == "" {
			return errors.New("credentials redis-addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend: %s", c.Credentials.Backend)
	}
	if _, err := parseDuration(c.Credentials.RedisTTL); err != nil {
		return fmt.Errorf("invalid credentials redis-ttl: %w", err)
	}
	if _, err := parseDuration(c.Settings.Timeout); err != nil {
		return fmt.Errorf("invalid settings timeout: %w", err)
	}
	return nil
}

// ServerOrDefault returns the configured server, or DefaultServer.
func (c *Config) ServerOrDefault() string {
	if strings.TrimSpace(c.Server) != "" {
		return c.Server
	}
	return DefaultServer
}

// TimeoutOrDefault returns the request timeout. Unset or invalid values give DefaultTimeout.
func (s Settings) TimeoutOrDefault() time.Duration {
	d, err := parseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

func (s Settings) LanguageOrDefault() string {
	if s.Language == "" {
		return DefaultLanguage
	}
	return s.Language
}

// BackendConfig translates the credentials section for auth.NewBackend. An
// empty file path uses DefaultCredentialsPath.
func (c Credentials) BackendConfig() (auth.BackendConfig, error) {
	ttl, err := parseDuration(c.RedisTTL)
	if err != nil {
		return auth.BackendConfig{}, fmt.Errorf("invalid credentials redis-ttl: %w", err)
	}
	path := c.Path
	if path == "" {
		path = DefaultCredentialsPath()
	}
	return auth.BackendConfig{
		Type:           c.Backend,
		Path:           path,
		KeyringService: c.KeyringService,
		Redis: auth.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Key:      c.RedisKey,
			TTL:      ttl,
		},
	}, nil
}

// Keys lists the dotted keys accepted by Set.
var Keys = []string{
	"server",
	"credentials.backend",
	"credentials.path",
	"credentials.keyring-service",
	"credentials.redis-addr",
	"credentials.redis-password",
	"credentials.redis-db",
	"credentials.redis-key",
	"credentials.redis-ttl",
	"events.redis-url",
	"events.topic",
	"settings.output-format",
	"settings.timeout",
	"settings.language",
	"settings.ca-file",
	"settings.insecure-skip-tls-verify",
}

// Set assigns a single value by dotted key, e.g. "settings.timeout".
func (c *Config) Set(key, value string) error {
	switch key {
	case "server":
		c.Server = value
	case "credentials.backend":
		c.Credentials.Backend = value
	case "credentials.path":
		c.Credentials.Path = value
	case "credentials.keyring-service":
		c.Credentials.KeyringService = value
	case "credentials.redis-addr":
		c.Credentials.RedisAddr = value
	case "credentials.redis-password":
		c.Credentials.RedisPassword = value
	case "credentials.redis-db":
		db, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Credentials.RedisDB = db
	case "credentials.redis-key":
		c.Credentials.RedisKey = value
	case "credentials.redis-ttl":
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Credentials.RedisTTL = value
	case "events.redis-url":
		c.Events.RedisURL = value
	case "events.topic":
		c.Events.Topic = value
	case "settings.output-format":
		c.Settings.OutputFormat = value
	case "settings.timeout":
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Settings.Timeout = value
	case "settings.language":
		c.Settings.Language = value
	case "settings.ca-file":
		c.Settings.CAFile = value
	case "settings.insecure-skip-tls-verify":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		c.Settings.InsecureSkipTLSVerify = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
