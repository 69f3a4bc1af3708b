package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/semmy-space/credstash/internal/config"
	"github.com/semmy-space/credstash/internal/output"
)

var outputModes = []string{"auto", "json", "plain", "rich"}

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., backend, workers)"`
}

// Run executes the get command
func (cmd *ConfigGetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitNotFound,
		}
	}

	fmt.Fprintln(fp.Out, value)
	return nil
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitUsage,
		}
	}

	switch cmd.Key {
	case "backend":
		if err := config.ValidateBackend(cmd.Value); err != nil {
			return &output.CLIError{
				Message:  fmt.Sprintf("Invalid backend: %s. Valid backends: %s", cmd.Value, strings.Join(config.ValidBackends(), ", ")),
				ExitCode: output.ExitUsage,
			}
		}
	case "default_output":
		if !contains(outputModes, cmd.Value) {
			return &output.CLIError{
				Message:  fmt.Sprintf("Invalid output format: %s. Valid formats: %s", cmd.Value, strings.Join(outputModes, ", ")),
				ExitCode: output.ExitUsage,
			}
		}
	case "file_password":
		fmt.Fprintf(fp.Err, "Note: file_password is stored in the config file in clear text.\n")
	}

	if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to set config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	fmt.Fprintf(fp.Err, "Set %s = %s\n", cmd.Key, displayConfigValue(cmd.Key, cmd.Value))
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitUsage,
		}
	}

	if err := cfg.Unset(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to unset config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	fmt.Fprintf(fp.Err, "Unset %s\n", cmd.Key)
	return nil
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	type ConfigItem struct {
		Key   string
		Value string
	}

	var items []ConfigItem
	for _, key := range cfg.Keys() {
		value, _ := cfg.Get(key)
		items = append(items, ConfigItem{Key: key, Value: displayConfigValue(key, value)})
	}

	cols := []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	}

	return fp.Formatter.PrintList(items, cols)
}

// displayConfigValue masks secret config values
func displayConfigValue(key, value string) string {
	if key == "file_password" {
		return maskSecret(value)
	}
	return value
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	path := cfg.Path()

	fmt.Fprintln(fp.Out, path)

	// Print existence hint to stderr
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(fp.Err, "(file does not exist yet - will be created on first write)\n")
	} else {
		fmt.Fprintf(fp.Err, "(file exists)\n")
	}

	return nil
}
