package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/semmy-space/credstash/internal/config"
	"github.com/semmy-space/credstash/internal/credentials"
	"github.com/semmy-space/credstash/internal/logging"
	"github.com/semmy-space/credstash/internal/output"
)

// credentialEntry is one row of credential output
type credentialEntry struct {
	Service string `json:"service"`
	Account string `json:"account"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
}

var entryColumns = []output.Column{
	{Name: "SERVICE", Key: "Service"},
	{Name: "ACCOUNT", Key: "Account"},
	{Name: "KIND", Key: "Kind"},
	{Name: "VALUE", Key: "Value", Width: 60},
}

func newEntry(service, account string, value credentials.Value, reveal bool) credentialEntry {
	return credentialEntry{
		Service: service,
		Account: account,
		Kind:    value.Kind().String(),
		Value:   describeValue(value, reveal),
	}
}

// describeValue renders value for display. Masked structured values show field names only.
func describeValue(value credentials.Value, reveal bool) string {
	switch value.Kind() {
	case credentials.KindText:
		text, _ := value.Text()
		if reveal {
			return text
		}
		return maskSecret(text)
	case credentials.KindStructured:
		fields, _ := value.Fields()
		if reveal {
			data, err := json.Marshal(fields)
			if err != nil {
				return fmt.Sprintf("%v", fields)
			}
			return string(data)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return "{" + strings.Join(names, ", ") + "}"
	default:
		return ""
	}
}

// maskSecret masks sensitive values, showing only last 4 characters
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func notFound(service, account string) error {
	return output.NewCLIError(output.ExitNotFound,
		fmt.Sprintf("No credentials stored for %s/%s", service, account))
}

// GetCmd implements the get command
type GetCmd struct {
	Service string `arg:"" help:"Service name" predictor:"service"`
	Account string `arg:"" help:"Account key"`
	Field   string `help:"Print a single field of structured credentials" short:"f"`
	Reveal  bool   `help:"Print the secret instead of a masked value" short:"r"`
}

// Run executes the get command
func (cmd *GetCmd) Run(sp *SessionProvider, fp *FormatterProvider) error {
	session, err := sp.Session()
	if err != nil {
		return err
	}

	if err := session.Load(cmd.Service, []string{cmd.Account}); err != nil {
		return err
	}

	value := session.Manager().Lookup(cmd.Service, cmd.Account)
	if value.IsEmpty() {
		return notFound(cmd.Service, cmd.Account)
	}

	if cmd.Field != "" {
		field, ok := value.Field(cmd.Field)
		if !ok {
			return output.NewCLIError(output.ExitNotFound,
				fmt.Sprintf("No field %s in credentials of %s/%s", cmd.Field, cmd.Service, cmd.Account))
		}
		text := fmt.Sprintf("%v", field)
		if !cmd.Reveal {
			text = maskSecret(text)
		}
		return fp.Formatter.Print(text)
	}

	return fp.Formatter.Print(newEntry(cmd.Service, cmd.Account, value, cmd.Reveal))
}

// SetCmd implements the set command
type SetCmd struct {
	Service string            `arg:"" help:"Service name" predictor:"service"`
	Account string            `arg:"" help:"Account key"`
	Value   string            `arg:"" optional:"" help:"Text secret (read from stdin when omitted)"`
	Field   map[string]string `help:"Structured field as key=value (repeatable)" short:"f"`
}

// Run executes the set command
func (cmd *SetCmd) Run(sp *SessionProvider, fp *FormatterProvider, globals *Globals, log logrus.FieldLogger) error {
	if cmd.Value != "" && len(cmd.Field) > 0 {
		return output.NewCLIError(output.ExitUsage, "Pass either VALUE or --field, not both")
	}

	value, err := cmd.resolveValue(fp.In, globals.NoInput)
	if err != nil {
		return err
	}

	session, err := sp.Session()
	if err != nil {
		return err
	}

	if err := session.Load(cmd.Service, []string{cmd.Account}); err != nil {
		return err
	}

	manager := session.Manager()
	if value.Equal(manager.Lookup(cmd.Service, cmd.Account)) {
		fmt.Fprintf(fp.Err, "%s/%s unchanged\n", cmd.Service, cmd.Account)
		return nil
	}

	log.WithFields(logrus.Fields{
		"service": cmd.Service,
		"account": cmd.Account,
		"value":   logging.Secret(describeValue(value, true)),
	}).Debug("Storing credentials")

	if value.Kind() == credentials.KindText {
		text, _ := value.Text()
		manager.SetText(cmd.Service, cmd.Account, text)
	} else {
		fields, _ := value.Fields()
		manager.SetFields(cmd.Service, cmd.Account, fields)
	}

	if err := session.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(fp.Err, "Stored %s/%s (%s)\n", cmd.Service, cmd.Account, value.Kind())
	return nil
}

func (cmd *SetCmd) resolveValue(in io.Reader, noInput bool) (credentials.Value, error) {
	if len(cmd.Field) > 0 {
		fields := make(map[string]any, len(cmd.Field))
		for k, v := range cmd.Field {
			fields[k] = v
		}
		return credentials.Structured(fields), nil
	}
	if cmd.Value != "" {
		return credentials.Text(cmd.Value), nil
	}

	if noInput {
		return credentials.Value{}, output.NewCLIError(output.ExitUsage, "No value given").
			WithHint("Pass VALUE or --field, or allow input to read the secret from stdin")
	}

	text, err := readSecret(in)
	if err != nil {
		return credentials.Value{}, &output.CLIError{
			ExitCode: output.ExitGeneral,
			Message:  fmt.Sprintf("Failed to read secret: %v", err),
		}
	}
	if text == "" {
		return credentials.Value{}, output.NewCLIError(output.ExitUsage, "Empty secret").
			WithHint("Use credstash delete to remove credentials")
	}
	return credentials.Text(text), nil
}

// readSecret reads a secret without echo from a terminal, or the whole of in otherwise
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Secret: ")
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// DeleteCmd implements the delete command
type DeleteCmd struct {
	Service string `arg:"" help:"Service name" predictor:"service"`
	Account string `arg:"" help:"Account key"`
}

// Run executes the delete command
func (cmd *DeleteCmd) Run(sp *SessionProvider, fp *FormatterProvider) error {
	session, err := sp.Session()
	if err != nil {
		return err
	}

	if err := session.Load(cmd.Service, []string{cmd.Account}); err != nil {
		return err
	}

	manager := session.Manager()
	if manager.Lookup(cmd.Service, cmd.Account).IsEmpty() {
		return notFound(cmd.Service, cmd.Account)
	}

	manager.SetCredentials(credentials.NewStorageKey(cmd.Service, cmd.Account), credentials.Empty(), false)
	if err := session.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(fp.Err, "Deleted %s/%s\n", cmd.Service, cmd.Account)
	return nil
}

// LoadCmd implements the load command
type LoadCmd struct {
	Service  string   `arg:"" help:"Service name" predictor:"service"`
	Accounts []string `arg:"" optional:"" help:"Account keys (defaults to the configured list)"`
	Reveal   bool     `help:"Print secrets instead of masked values" short:"r"`
}

// Run executes the load command
func (cmd *LoadCmd) Run(sp *SessionProvider, fp *FormatterProvider) error {
	session, err := sp.Session()
	if err != nil {
		return err
	}

	if err := session.Load(cmd.Service, cmd.Accounts); err != nil {
		return err
	}

	entries := serviceEntries(session, cmd.Service, cmd.Reveal)
	if missing := len(session.Manager().Accounts(cmd.Service)) - len(entries); missing > 0 {
		fp.Formatter.PrintHint(fmt.Sprintf("%d account(s) of %s have no stored credentials", missing, cmd.Service))
	}
	return fp.Formatter.PrintList(entries, entryColumns)
}

// ListCmd implements the list command
type ListCmd struct {
	Reveal bool `help:"Print secrets instead of masked values" short:"r"`
}

// Run executes the list command
func (cmd *ListCmd) Run(sp *SessionProvider, fp *FormatterProvider, cfg *config.Config) error {
	services := cfg.ServiceNames()
	if len(services) == 0 {
		fp.Formatter.PrintHint("No services configured. Run: credstash service add SERVICE ACCOUNT...")
		return fp.Formatter.PrintList([]credentialEntry{}, entryColumns)
	}

	session, err := sp.Session()
	if err != nil {
		return err
	}

	var entries []credentialEntry
	for _, service := range services {
		if err := session.Load(service, nil); err != nil {
			return err
		}
		entries = append(entries, serviceEntries(session, service, cmd.Reveal)...)
	}

	return fp.Formatter.PrintList(entries, entryColumns)
}

func serviceEntries(session *Session, service string, reveal bool) []credentialEntry {
	manager := session.Manager()
	entries := []credentialEntry{}
	for _, account := range manager.Keys(service) {
		entries = append(entries, newEntry(service, account, manager.Lookup(service, account), reveal))
	}
	return entries
}
