package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// SystemStore implements the Store interface directly on the platform secret
// service (macOS Keychain, Secret Service over D-Bus, Windows Credential Manager).
// It needs no configuration but cannot enumerate items.
type SystemStore struct{}

// NewSystemStore creates a store backed by the platform secret service
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Get retrieves a credential from the secret service.
func (s *SystemStore) Get(service, account string) (string, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("secret service get failed: %w", err)
	}
	return value, nil
}

// Set stores a credential in the secret service.
func (s *SystemStore) Set(service, account, value string) error {
	if err := keyring.Set(service, account, value); err != nil {
		return fmt.Errorf("secret service set failed: %w", err)
	}
	return nil
}

// Delete removes a credential from the secret service.
func (s *SystemStore) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("secret service delete failed: %w", err)
	}
	return nil
}

// List is not supported by the secret service API.
func (s *SystemStore) List(service string) ([]string, error) {
	return nil, ErrListUnsupported
}
