package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/credstash/internal/cli"
	"github.com/semmy-space/credstash/internal/output"
)

var (
	version = "dev"
)

func main() {
	cliInstance := &cli.CLI{}
	parser := kong.Must(cliInstance,
		kong.Name("credstash"),
		kong.Description("Credential cache over the OS secret store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	// Answers shell completion requests and exits
	kongplete.Complete(parser,
		kongplete.WithPredictor("service", cli.ServicePredictor()),
	)

	ctx, err := parser.Parse(os.Args[1:])
	var cliErr *output.CLIError
	if err != nil && !errors.As(err, &cliErr) {
		// Usage errors print help and exit
		parser.FatalIfErrorf(err)
	}

	if err == nil {
		// Run command with bound dependencies
		err = ctx.Run()
		if finishErr := cliInstance.Finish(); err == nil {
			err = finishErr
		}
	}

	if err != nil {
		os.Exit(output.ReportError(output.New("plain"), err))
	}
}
