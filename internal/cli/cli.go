package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/sirupsen/logrus"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/credstash/internal/config"
	"github.com/semmy-space/credstash/internal/logging"
	"github.com/semmy-space/credstash/internal/metrics"
	"github.com/semmy-space/credstash/internal/output"
	"github.com/semmy-space/credstash/internal/secrets"
)

// FormatterProvider wraps the formatter interface and standard streams for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
}

// CLI is the root command structure
type CLI struct {
	Globals

	Get        GetCmd                       `cmd:"" help:"Print the credentials of an account"`
	Set        SetCmd                       `cmd:"" help:"Store text or structured credentials"`
	Delete     DeleteCmd                    `cmd:"" help:"Delete the credentials of an account"`
	Load       LoadCmd                      `cmd:"" help:"Load the accounts of a service"`
	List       ListCmd                      `cmd:"" help:"List credentials of all configured services"`
	Service    ServiceCmd                   `cmd:"" help:"Manage the configured services"`
	Config     ConfigCmd                    `cmd:"" help:"Configuration commands"`
	Version    VersionCmd                   `cmd:"" help:"Show version information"`
	Completion kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`

	sessions *SessionProvider
	metrics  *metrics.Recorder
	stderr   output.Formatter
}

// AfterApply hook runs once flags are parsed, before any command execution.
// It loads config, resolves the backend, creates formatter, and binds dependencies.
func (c *CLI) AfterApply(ctx *kong.Context) error {
	// Load config from XDG path (returns defaults if missing)
	cfg, err := config.Load()
	if err != nil {
		return &output.CLIError{
			ExitCode: output.ExitConfigError,
			Message:  err.Error(),
			Hint:     "Check " + config.ConfigPath(),
		}
	}

	// Resolve backend: CLI flag > config > auto
	backend := c.Backend
	if backend == "" {
		backend = cfg.Backend
	}
	if err := config.ValidateBackend(backend); err != nil {
		return &output.CLIError{
			ExitCode: output.ExitConfigError,
			Message:  err.Error(),
			Hint:     "Run: credstash config set backend auto",
		}
	}

	log := logging.New(c.Verbose, os.Stderr)
	mode := c.ResolvedOutput(cfg.DefaultOutput)

	c.metrics = metrics.NewRecorder()
	c.stderr = output.NewWithWriters(mode, os.Stderr, os.Stderr)
	c.sessions = NewSessionProvider(cfg, secrets.Options{
		Backend:    backend,
		KeyringDir: cfg.KeyringDir,
		FilePath:   cfg.FilePath,
		Password:   cfg.FilePassword,
	}, log, c.metrics)

	formatter := &FormatterProvider{
		Formatter: output.New(mode),
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
	}

	// Bind dependencies to kong context
	ctx.Bind(cfg)
	ctx.Bind(formatter)
	ctx.Bind(&c.Globals)
	ctx.Bind(c.sessions)
	ctx.BindTo(log, (*logrus.FieldLogger)(nil))

	return nil
}

// Finish stops background work and prints metrics when requested
func (c *CLI) Finish() error {
	if c.sessions == nil {
		return nil
	}
	c.sessions.Close()

	if !c.Metrics {
		return nil
	}
	return printMetrics(c.stderr, c.metrics)
}

func printMetrics(f output.Formatter, rec *metrics.Recorder) error {
	samples, err := rec.Snapshot()
	if err != nil {
		return err
	}

	cols := []output.Column{
		{Name: "METRIC", Key: "Name"},
		{Name: "LABELS", Key: "Labels"},
		{Name: "VALUE", Key: "Value"},
	}
	return f.PrintList(samples, cols)
}

// ServiceCmd holds service registry subcommands
type ServiceCmd struct {
	Add    ServiceAddCmd    `cmd:"" help:"Register a service and its accounts"`
	Remove ServiceRemoveCmd `cmd:"" help:"Unregister a service"`
	List   ServiceListCmd   `cmd:"" help:"List registered services"`
}

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context, fp *FormatterProvider) error {
	version := ctx.Model.Vars()["version"]
	fmt.Fprintln(fp.Out, "credstash version "+version)
	return nil
}

// ServicePredictor completes configured service names
func ServicePredictor() complete.Predictor {
	return complete.PredictFunc(func(complete.Args) []string {
		cfg, err := config.Load()
		if err != nil {
			return nil
		}
		return cfg.ServiceNames()
	})
}
