package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"golang.org/x/crypto/scrypt"
)

const lockTimeout = 10 * time.Second

// FileStore implements the Store interface using an AES-256-GCM encrypted file.
// This is a fallback for environments where OS keyring is unavailable (WSL, headless, Docker).
// A lock file serializes access across processes.
type FileStore struct {
	path     string
	lockPath string
	key      []byte

	mu sync.Mutex
}

// DefaultFilePath returns the location of the encrypted credentials file
func DefaultFilePath() string {
	return filepath.Join(xdg.DataHome, AppName, "credentials.enc")
}

// NewFileStore creates a new file-backed credential store at path (DefaultFilePath if empty).
// If password is empty, uses a machine-specific default (less secure, prints warning).
func NewFileStore(path, password string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath()
	}

	if password == "" {
		// Machine-specific default (less secure than user-provided password)
		hostname, _ := os.Hostname()
		username := os.Getenv("USER")
		if username == "" {
			username = os.Getenv("USERNAME") // Windows fallback
		}
		password = fmt.Sprintf("%s@%s", username, hostname)
		warnOnce("WARNING: Using machine-specific encryption key. For better security, run: credstash config set file_password PASSWORD")
	}

	salt := sha256.Sum256([]byte(AppName + ":" + path))
	key, err := scrypt.Key([]byte(password), salt[:], 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	// Create parent directory with 0700 permissions
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	return &FileStore{
		path:     path,
		lockPath: path + ".lock",
		key:      key,
	}, nil
}

// encrypt encrypts plaintext using AES-256-GCM with a random 12-byte nonce.
// The nonce is prepended to the ciphertext.
func (s *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts ciphertext that was encrypted with encrypt().
func (s *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

func (s *FileStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// fileContents maps service -> account -> secret
type fileContents map[string]map[string]string

// withLock runs fn holding both the in-process mutex and the file lock.
// Shared locks are taken for reads.
func (s *FileStore) withLock(exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = lock.TryLockContext(ctx, 100*time.Millisecond)
	} else {
		locked, err = lock.TryRLockContext(ctx, 100*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout")
	}
	defer lock.Unlock()

	return fn()
}

// readStore decrypts and parses the credential file.
// Returns an empty map if the file doesn't exist.
func (s *FileStore) readStore() (fileContents, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(fileContents), nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if len(data) == 0 {
		return make(fileContents), nil
	}

	plaintext, err := s.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	store := make(fileContents)
	if err := json.Unmarshal(plaintext, &store); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return store, nil
}

// writeStore encrypts and writes the credential map to disk.
// The file is replaced atomically so readers never see a partial write.
func (s *FileStore) writeStore(store fileContents) error {
	plaintext, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}

	return nil
}

// Get retrieves a credential from the encrypted file.
func (s *FileStore) Get(service, account string) (string, error) {
	var value string
	err := s.withLock(false, func() error {
		store, err := s.readStore()
		if err != nil {
			return err
		}

		v, ok := store[service][account]
		if !ok {
			return ErrNotFound
		}
		value = v
		return nil
	})
	return value, err
}

// Set stores a credential in the encrypted file.
func (s *FileStore) Set(service, account, value string) error {
	return s.withLock(true, func() error {
		store, err := s.readStore()
		if err != nil {
			return err
		}

		if store[service] == nil {
			store[service] = make(map[string]string)
		}
		store[service][account] = value
		return s.writeStore(store)
	})
}

// Delete removes a credential from the encrypted file.
func (s *FileStore) Delete(service, account string) error {
	return s.withLock(true, func() error {
		store, err := s.readStore()
		if err != nil {
			return err
		}

		if _, ok := store[service][account]; !ok {
			return ErrNotFound
		}

		delete(store[service], account)
		if len(store[service]) == 0 {
			delete(store, service)
		}
		return s.writeStore(store)
	})
}

// List returns the account keys stored for service, sorted.
func (s *FileStore) List(service string) ([]string, error) {
	var keys []string
	err := s.withLock(false, func() error {
		store, err := s.readStore()
		if err != nil {
			return err
		}

		keys = make([]string, 0, len(store[service]))
		for k := range store[service] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}
