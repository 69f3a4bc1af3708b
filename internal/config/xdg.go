package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the XDG-compliant config directory for credstash
// Typically ~/.config/credstash/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "credstash")
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// DataDir returns the XDG-compliant data directory for credstash
// Typically ~/.local/share/credstash/ on Linux (encrypted file and keyring file backend)
func DataDir() string {
	return filepath.Join(xdg.DataHome, "credstash")
}
