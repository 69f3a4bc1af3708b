package cli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/semmy-space/credstash/internal/config"
	"github.com/semmy-space/credstash/internal/credentials"
	"github.com/semmy-space/credstash/internal/keychain"
	"github.com/semmy-space/credstash/internal/metrics"
	"github.com/semmy-space/credstash/internal/output"
	"github.com/semmy-space/credstash/internal/secrets"
)

// Session wires a secret store to a credential Manager for one command run
type Session struct {
	cfg     *config.Config
	store   secrets.Store
	runner  *keychain.Runner
	backend *trackingBackend
	manager *credentials.Manager

	mu    sync.Mutex
	ready map[string]bool
}

// NewSession starts a job runner over store. Call Close when done.
func NewSession(cfg *config.Config, store secrets.Store, log logrus.FieldLogger, rec *metrics.Recorder) *Session {
	workers := cfg.Workers
	if workers <= 0 {
		workers = keychain.DefaultWorkers
	}

	runner := keychain.NewRunner(store,
		keychain.WithWorkers(workers),
		keychain.WithRateLimit(cfg.RateLimit),
		keychain.WithLogger(log),
		keychain.WithMetrics(rec),
	)

	s := &Session{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		backend: &trackingBackend{Backend: runner},
		ready:   make(map[string]bool),
	}
	s.manager = credentials.NewManager(s.backend, credentials.WithLogger(log))
	s.manager.OnServiceReady(func(service string) {
		rec.ServiceReady(service)
		s.mu.Lock()
		s.ready[service] = true
		s.mu.Unlock()
	})

	return s
}

// Manager returns the credential cache of this session
func (s *Session) Manager() *credentials.Manager {
	return s.manager
}

// Load registers service and blocks until every account has been read.
// Without accounts the configured list is used, then the store's own listing.
func (s *Session) Load(service string, accounts []string) error {
	if len(accounts) == 0 {
		resolved, err := s.accounts(service)
		if err != nil {
			return err
		}
		accounts = resolved
	}

	s.mu.Lock()
	delete(s.ready, service)
	s.mu.Unlock()

	s.manager.AddService(service, accounts)
	s.runner.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready[service] {
		return fmt.Errorf("service %s did not finish loading", service)
	}
	return nil
}

func (s *Session) accounts(service string) ([]string, error) {
	if accounts, ok := s.cfg.Services[service]; ok {
		return accounts, nil
	}

	accounts, err := s.store.List(service)
	if errors.Is(err, secrets.ErrListUnsupported) {
		return nil, output.NewCLIError(output.ExitUsage,
			fmt.Sprintf("No accounts known for service %s", service)).
			WithHint(fmt.Sprintf("Run: credstash service add %s ACCOUNT...", service))
	}
	if err != nil {
		return nil, &output.CLIError{
			ExitCode: output.ExitStoreError,
			Message:  fmt.Sprintf("Failed to list accounts of %s: %v", service, err),
		}
	}
	return accounts, nil
}

// Flush waits for pending writes and deletes and returns their failures
func (s *Session) Flush() error {
	s.runner.Wait()
	if err := s.backend.takeErrors(); err != nil {
		return &output.CLIError{
			ExitCode: output.ExitStoreError,
			Message:  fmt.Sprintf("Failed to update secret store: %v", err),
		}
	}
	return nil
}

// Close stops the job runner
func (s *Session) Close() {
	s.runner.Close()
}

// trackingBackend records failed writes and deletes, which the Manager only logs
type trackingBackend struct {
	credentials.Backend

	mu   sync.Mutex
	errs []error
}

func (b *trackingBackend) NewJob(kind credentials.JobKind, key credentials.StorageKey, payload string, done credentials.JobFunc) credentials.Job {
	return b.Backend.NewJob(kind, key, payload, func(j credentials.Job) {
		if j.Kind() != credentials.JobRead && j.Err() != nil {
			b.mu.Lock()
			b.errs = append(b.errs, fmt.Errorf("%s %s: %w", j.Kind(), j.Key(), j.Err()))
			b.mu.Unlock()
		}
		done(j)
	})
}

func (b *trackingBackend) takeErrors() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := errors.Join(b.errs...)
	b.errs = nil
	return err
}

// SessionProvider lazily opens the secret store and creates the Session
type SessionProvider struct {
	cfg     *config.Config
	opts    secrets.Options
	log     logrus.FieldLogger
	metrics *metrics.Recorder
	open    func(secrets.Options) (secrets.Store, error)

	once    sync.Once
	session *Session
	err     error
}

// NewSessionProvider creates a SessionProvider opening stores with secrets.NewStore
func NewSessionProvider(cfg *config.Config, opts secrets.Options, log logrus.FieldLogger, rec *metrics.Recorder) *SessionProvider {
	return &SessionProvider{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		metrics: rec,
		open:    secrets.NewStore,
	}
}

// Session returns the Session, opening the store on first call
func (sp *SessionProvider) Session() (*Session, error) {
	sp.once.Do(func() {
		store, err := sp.open(sp.opts)
		if err != nil {
			sp.err = &output.CLIError{
				ExitCode: output.ExitStoreError,
				Message:  fmt.Sprintf("Failed to initialize secrets store: %v", err),
				Hint:     "Try --backend file, or set file_password in the config",
			}
			return
		}
		sp.log.WithField("backend", secrets.BackendOf(store)).Debug("Secret store opened")
		sp.session = NewSession(sp.cfg, store, sp.log, sp.metrics)
	})
	return sp.session, sp.err
}

// Close stops the Session if one was created
func (sp *SessionProvider) Close() {
	if sp.session != nil {
		sp.session.Close()
	}
}
