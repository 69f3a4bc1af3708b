package cli

import (
	"fmt"
	"strings"

	"github.com/semmy-space/credstash/internal/config"
	"github.com/semmy-space/credstash/internal/output"
)

// ServiceAddCmd implements the service add command
type ServiceAddCmd struct {
	Service  string   `arg:"" help:"Service name"`
	Accounts []string `arg:"" optional:"" help:"Account keys loaded for the service"`
}

// Run executes the service add command
func (cmd *ServiceAddCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	if err := cfg.AddService(cmd.Service, cmd.Accounts); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to add service: %v", err),
			ExitCode: output.ExitConfigError,
		}
	}

	fmt.Fprintf(fp.Err, "Registered %s with %d account(s)\n", cmd.Service, len(cmd.Accounts))
	return nil
}

// ServiceRemoveCmd implements the service remove command
type ServiceRemoveCmd struct {
	Service string `arg:"" help:"Service name" predictor:"service"`
}

// Run executes the service remove command
func (cmd *ServiceRemoveCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	if _, ok := cfg.Services[cmd.Service]; !ok {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown service: %s", cmd.Service),
			ExitCode: output.ExitNotFound,
		}
	}

	if err := cfg.RemoveService(cmd.Service); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to remove service: %v", err),
			ExitCode: output.ExitConfigError,
		}
	}

	fmt.Fprintf(fp.Err, "Removed %s (stored credentials are kept)\n", cmd.Service)
	return nil
}

// ServiceListCmd implements the service list command
type ServiceListCmd struct{}

// Run executes the service list command
func (cmd *ServiceListCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	type serviceItem struct {
		Service  string `json:"service"`
		Accounts string `json:"accounts"`
	}

	items := []serviceItem{}
	for _, name := range cfg.ServiceNames() {
		items = append(items, serviceItem{
			Service:  name,
			Accounts: strings.Join(cfg.Services[name], ","),
		})
	}

	cols := []output.Column{
		{Name: "SERVICE", Key: "Service"},
		{Name: "ACCOUNTS", Key: "Accounts"},
	}

	return fp.Formatter.PrintList(items, cols)
}
