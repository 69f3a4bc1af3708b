package cli

import (
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Backend string `help:"Secret store backend" default:"" enum:"auto,keyring,system,file," env:"CREDSTASH_BACKEND"`
	Output  string `help:"Output format" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"CREDSTASH_OUTPUT"`
	Verbose bool   `help:"Verbose output" short:"v" env:"CREDSTASH_VERBOSE"`
	Metrics bool   `help:"Print job metrics after the command" env:"CREDSTASH_METRICS"`
	NoInput bool   `help:"Disable interactive prompts (fail instead)" env:"CREDSTASH_NO_INPUT"`
}

// ResolvedOutput returns the effective output mode
// "auto" falls back to the configured default, then detects TTY:
// if stdout is TTY -> rich, else -> plain
func (g *Globals) ResolvedOutput(configured string) string {
	if g.Output != "" && g.Output != "auto" {
		return g.Output
	}
	if configured != "" && configured != "auto" {
		return configured
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}
