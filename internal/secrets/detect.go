package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
)

// warningShown checks if the file-store warning has already been shown.
// Uses a marker file in the data directory to avoid repeating on every command.
func warningShown() bool {
	return fileExists(warningMarkerPath())
}

// markWarningShown creates the marker file so the warning isn't repeated.
func markWarningShown() {
	_ = os.WriteFile(warningMarkerPath(), []byte("1"), 0600)
}

func warningMarkerPath() string {
	return filepath.Join(xdg.DataHome, AppName, ".file-store-warning-shown")
}

// quietMode returns true if the user has suppressed warnings via CREDSTASH_QUIET.
func quietMode() bool {
	return os.Getenv("CREDSTASH_QUIET") == "1" || os.Getenv("CREDSTASH_QUIET") == "true"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// warnOnce logs a warning, but only the first time.
// Subsequent invocations are suppressed via a marker file.
// Set CREDSTASH_QUIET=1 to suppress entirely.
func warnOnce(msg string) {
	if quietMode() || warningShown() {
		return
	}
	logrus.Warn(msg)
}

// markWarningsDone persists the marker so future commands stay quiet.
func markWarningsDone() {
	if !warningShown() {
		markWarningShown()
	}
}

// Backend names accepted by NewStore
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendSystem  = "system"
	BackendFile    = "file"
)

// Options selects and configures the store created by NewStore
type Options struct {
	Backend    string // one of the Backend* names; empty means auto
	KeyringDir string // file backend directory of the keyring store
	FilePath   string // encrypted file of the file store
	Password   string // unlocks file-based stores without prompting
}

// NewStore creates a Store instance for the requested backend.
// In auto mode it tries the OS keyring first and falls back to the encrypted
// file if unavailable. WSL and headless environments go straight to the file.
func NewStore(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendKeyring:
		return NewKeyringStore(opts.KeyringDir, opts.Password)
	case BackendSystem:
		return NewSystemStore(), nil
	case BackendFile:
		return NewFileStore(opts.FilePath, opts.Password)
	case "", BackendAuto:
	default:
		return nil, fmt.Errorf("unknown secrets backend: %s", opts.Backend)
	}

	// WSL and headless environments can't use keyring reliably
	if IsWSL() || IsHeadless() {
		warnOnce("Detected WSL/headless environment, using encrypted file storage")
		store, err := NewFileStore(opts.FilePath, opts.Password)
		if err != nil {
			return nil, err
		}
		markWarningsDone()
		return store, nil
	}

	// Try keyring first
	store, err := NewKeyringStore(opts.KeyringDir, opts.Password)
	if err != nil {
		warnOnce(fmt.Sprintf("Keyring unavailable (%v), falling back to encrypted file", err))
		fstore, ferr := NewFileStore(opts.FilePath, opts.Password)
		if ferr != nil {
			return nil, ferr
		}
		markWarningsDone()
		return fstore, nil
	}

	return store, nil
}

// BackendOf returns the backend name of a store opened by NewStore.
// Other stores report "custom".
func BackendOf(store Store) string {
	switch store.(type) {
	case *KeyringStore:
		return BackendKeyring
	case *SystemStore:
		return BackendSystem
	case *FileStore:
		return BackendFile
	default:
		return "custom"
	}
}

// IsWSL returns true if running under Windows Subsystem for Linux.
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}

	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// IsHeadless returns true if running in a headless environment (no display server).
// Only applicable on Linux; macOS and Windows are assumed to have GUI.
func IsHeadless() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	// Check for X11 or Wayland display
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
