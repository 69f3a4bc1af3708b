package config

import (
	"fmt"
	"sort"
)

// Backends describes the secret stores a config may select
var Backends = map[string]string{
	"auto":    "OS keyring, encrypted file on WSL/headless or when the keyring is unavailable",
	"keyring": "OS keyring (Keychain, Secret Service, KWallet, Credential Manager, pass)",
	"system":  "Platform secret service without file fallback",
	"file":    "AES-256-GCM encrypted file in the XDG data directory",
}

// ValidateBackend returns an error for unknown backend names.
// The empty string is valid and means auto.
func ValidateBackend(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := Backends[name]; !ok {
		return fmt.Errorf("unknown backend: %s", name)
	}
	return nil
}

// ValidBackends returns a sorted list of valid backend names
func ValidBackends() []string {
	names := make([]string, 0, len(Backends))
	for name := range Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
