package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Config holds the CLI configuration
type Config struct {
	Backend       string              `json:"backend,omitempty"`
	KeyringDir    string              `json:"keyring_dir,omitempty"`
	FilePath      string              `json:"file_path,omitempty"`
	FilePassword  string              `json:"file_password,omitempty"`
	DefaultOutput string              `json:"default_output,omitempty"`
	Workers       int                 `json:"workers,omitempty"`
	RateLimit     float64             `json:"rate_limit,omitempty"`
	Services      map[string][]string `json:"services,omitempty"`

	path string
}

// Load reads config from XDG path, returns defaults if file doesn't exist
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, returns defaults if file doesn't exist
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Empty backend means "not set" - resolved to auto in cli.BeforeApply
			return &Config{path: path}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.path = path

	return &cfg, nil
}

// Path returns the file this config is loaded from and saved to
func (c *Config) Path() string {
	if c.path == "" {
		return ConfigPath()
	}
	return c.path
}

// Save writes the config to its path
func (c *Config) Save() error {
	path := c.Path()

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON (not JSON5 for writing - JSON is valid JSON5)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// field finds the scalar field tagged with key
func (c *Config) field(key string) (reflect.Value, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" || name != key {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String, reflect.Int, reflect.Float64:
			return v.Field(i), nil
		default:
			return reflect.Value{}, fmt.Errorf("config key %s cannot be edited directly", key)
		}
	}

	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

// Keys returns the editable config keys in declaration order
func (c *Config) Keys() []string {
	t := reflect.TypeOf(*c)

	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String, reflect.Int, reflect.Float64:
			keys = append(keys, name)
		}
	}
	return keys
}

// Get retrieves a config value by key name
func (c *Config) Get(key string) (string, error) {
	f, err := c.field(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", f.Interface()), nil
}

// Set sets a config value by key name and saves
func (c *Config) Set(key, value string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}

	switch f.Kind() {
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		f.SetInt(int64(n))
	case reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		f.SetFloat(n)
	default:
		f.SetString(value)
	}
	return c.Save()
}

// Unset sets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	f.Set(reflect.Zero(f.Type()))
	return c.Save()
}

// AddService registers accounts under service, replacing any earlier list, and saves
func (c *Config) AddService(service string, accounts []string) error {
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Services == nil {
		c.Services = make(map[string][]string)
	}
	c.Services[service] = append([]string{}, accounts...)
	return c.Save()
}

// RemoveService drops service from the registry and saves
func (c *Config) RemoveService(service string) error {
	if _, ok := c.Services[service]; !ok {
		return fmt.Errorf("unknown service: %s", service)
	}
	delete(c.Services, service)
	return c.Save()
}

// ServiceNames returns the configured services, sorted
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
