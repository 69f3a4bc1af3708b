package secrets

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
)

// Opener opens the keyring holding the items of one service
type Opener func(service string) (keyring.Keyring, error)

// KeyringStore implements the Store interface using the OS keyring.
// Each service maps to its own keyring; accounts are item keys within it.
type KeyringStore struct {
	open Opener

	mu    sync.Mutex
	rings map[string]keyring.Keyring
}

// NewKeyringStore creates a new keyring-backed credential store.
// dir holds the encrypted-file backend used when no OS keyring is reachable
// (defaults to the XDG data dir); password unlocks it without prompting.
// Returns an error if the keyring is unavailable on this platform.
func NewKeyringStore(dir, password string) (*KeyringStore, error) {
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, AppName, "keyring")
	}

	prompt := keyring.TerminalPrompt
	if password != "" {
		prompt = keyring.FixedStringPrompt(password)
	}

	open := func(service string) (keyring.Keyring, error) {
		return keyring.Open(keyring.Config{
			ServiceName:              service,
			KeychainTrustApplication: true, // macOS: don't prompt every access
			FileDir:                  filepath.Join(dir, service),
			FilePasswordFunc:         prompt,
		})
	}

	// Probe once so an unusable platform is reported up front
	if _, err := open(AppName); err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return NewKeyringStoreWithOpener(open), nil
}

// NewKeyringStoreWithOpener creates a keyring store with a custom opener.
// This is primarily for testing with keyring.NewArrayKeyring.
func NewKeyringStoreWithOpener(open Opener) *KeyringStore {
	return &KeyringStore{
		open:  open,
		rings: make(map[string]keyring.Keyring),
	}
}

// ring returns the keyring of service, opening it on first use
func (s *KeyringStore) ring(service string) (keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rings[service]; ok {
		return r, nil
	}

	r, err := s.open(service)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring for %s: %w", service, err)
	}
	s.rings[service] = r
	return r, nil
}

// Get retrieves a credential from the keyring.
func (s *KeyringStore) Get(service, account string) (string, error) {
	ring, err := s.ring(service)
	if err != nil {
		return "", err
	}

	item, err := ring.Get(account)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring get failed: %w", err)
	}
	return string(item.Data), nil
}

// Set stores a credential in the keyring.
func (s *KeyringStore) Set(service, account, value string) error {
	ring, err := s.ring(service)
	if err != nil {
		return err
	}

	item := keyring.Item{
		Key:   account,
		Data:  []byte(value),
		Label: fmt.Sprintf("%s: %s/%s", AppName, service, account),
	}
	if err := ring.Set(item); err != nil {
		return fmt.Errorf("keyring set failed: %w", err)
	}
	return nil
}

// Delete removes a credential from the keyring.
func (s *KeyringStore) Delete(service, account string) error {
	ring, err := s.ring(service)
	if err != nil {
		return err
	}

	if err := ring.Remove(account); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}

// List returns all account keys stored for service.
func (s *KeyringStore) List(service string) ([]string, error) {
	ring, err := s.ring(service)
	if err != nil {
		return nil, err
	}

	keys, err := ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keyring list failed: %w", err)
	}
	return keys, nil
}
