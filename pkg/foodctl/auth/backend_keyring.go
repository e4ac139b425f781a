package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const DefaultKeyringService = "foodctl"

var credentialKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUsername}

// KeyringBackend stores each credential field as its own secret in the OS
// keychain under a shared service name.
type KeyringBackend struct {
	service string
}

func NewKeyringBackend(service string) *KeyringBackend {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringBackend{service: service}
}

func (k *KeyringBackend) Name() string { return BackendKeyring }

func (k *KeyringBackend) Load(context.Context) (map[string]string, error) {
	fields := map[string]string{}
	for _, key := range credentialKeys {
		value, err := keyring.Get(k.service, key)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s from keychain: %w", key, err)
		}
		fields[key] = value
	}
	return fields, nil
}

func (k *KeyringBackend) Save(_ context.Context, fields map[string]string) error {
	for _, key := range credentialKeys {
		value, ok := fields[key]
		if !ok || value == "" {
			if err := k.delete(key); err != nil {
				return err
			}
			continue
		}
		if err := keyring.Set(k.service, key, value); err != nil {
			return fmt.Errorf("failed to write %s to keychain: %w", key, err)
		}
	}
	return nil
}

func (k *KeyringBackend) Erase(context.Context) error {
	for _, key := range credentialKeys {
		if err := k.delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (k *KeyringBackend) delete(key string) error {
	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keychain: %w", key, err)
	}
	return nil
}
