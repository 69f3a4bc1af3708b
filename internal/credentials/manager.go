package credentials

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager caches credentials in memory in front of an asynchronous secret store.
// Reads are served from the cache. Writes and deletes update the cache
// immediately and are pushed to the store in the background.
type Manager struct {
	backend Backend
	codec   Codec
	log     logrus.FieldLogger

	mu          sync.RWMutex
	credentials map[StorageKey]Value
	services    map[string][]string
	readJobs    map[string]map[string]Job // service -> job ID -> pending read

	handlersMu sync.Mutex
	handlers   []func(service string)
}

// Option configures a Manager
type Option func(*Manager)

// WithCodec replaces the JSON codec used for structured credentials
func WithCodec(c Codec) Option {
	return func(m *Manager) {
		m.codec = c
	}
}

// WithLogger sets the logger used for job diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates a Manager dispatching jobs to backend
func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:     backend,
		codec:       JSONCodec{},
		log:         logrus.StandardLogger(),
		credentials: make(map[StorageKey]Value),
		services:    make(map[string][]string),
		readJobs:    make(map[string]map[string]Job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnServiceReady registers fn to be called each time a service finishes loading.
// fn runs on the goroutine that completed the load: the AddService caller for
// services without accounts, the backend's delivery goroutine otherwise.
func (m *Manager) OnServiceReady(fn func(service string)) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// AddService registers the accounts of a service, replacing any previous list,
// and loads each of them from the store. Pending reads of an earlier load of the
// same service are no longer tracked.
func (m *Manager) AddService(service string, accounts []string) {
	m.mu.Lock()
	m.services[service] = append([]string(nil), accounts...)
	ready := m.loadLocked(service)
	m.mu.Unlock()

	if ready {
		m.emitReady(service)
	}
}

// loadLocked dispatches one read per account and reports whether nothing
// was dispatched. All jobs are tracked before any is started.
func (m *Manager) loadLocked(service string) bool {
	accounts := m.services[service]
	pending := make(map[string]Job, len(accounts))
	m.readJobs[service] = pending

	jobs := make([]Job, 0, len(accounts))
	for _, account := range accounts {
		j := m.backend.NewJob(JobRead, NewStorageKey(service, account), "", m.jobFinished)
		pending[j.ID()] = j
		jobs = append(jobs, j)
	}

	m.log.WithFields(logrus.Fields{
		"service":  service,
		"accounts": len(accounts),
	}).Debug("Loading credentials")

	for _, j := range jobs {
		m.log.WithFields(logrus.Fields{
			"service": service,
			"account": j.Key().Account(),
			"job":     j.ID(),
		}).Debug("Launching read job")
		j.Start()
	}

	return len(pending) == 0
}

// Credentials returns the cached credential for key, or Empty
func (m *Manager) Credentials(key StorageKey) Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials[key]
}

// Lookup returns the cached credential for service and account, or Empty
func (m *Manager) Lookup(service, account string) Value {
	return m.Credentials(NewStorageKey(service, account))
}

// Keys returns the accounts of service that currently hold a credential, sorted
func (m *Manager) Keys(service string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.credentials {
		if k.service == service {
			keys = append(keys, k.account)
		}
	}
	sort.Strings(keys)
	return keys
}

// Services returns the registered service names, sorted
func (m *Manager) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make([]string, 0, len(m.services))
	for s := range m.services {
		services = append(services, s)
	}
	sort.Strings(services)
	return services
}

// Accounts returns the account list last registered for service
func (m *Manager) Accounts(service string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.services[service]...)
}

// SetCredentials stores value under key. An empty value deletes the credential.
// The cache is updated before SetCredentials returns; the store is updated
// asynchronously and its outcome is only logged.
//
// When preferText is set, text values are written as raw text. Structured
// values are always written in the codec's encoding.
func (m *Manager) SetCredentials(key StorageKey, value Value, preferText bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log.WithFields(logrus.Fields{
		"service": key.service,
		"account": key.account,
	})

	var j Job
	if value.IsEmpty() {
		if _, ok := m.credentials[key]; !ok {
			return
		}
		delete(m.credentials, key)
		j = m.backend.NewJob(JobDelete, key, "", m.jobFinished)
	} else {
		if value.Equal(m.credentials[key]) {
			return
		}
		m.credentials[key] = value
		j = m.backend.NewJob(JobWrite, key, m.payload(log, value, preferText), m.jobFinished)
	}

	log.WithFields(logrus.Fields{
		"kind": j.Kind().String(),
		"job":  j.ID(),
	}).Debug("Launching job")
	j.Start()
}

func (m *Manager) payload(log logrus.FieldLogger, value Value, preferText bool) string {
	switch value.Kind() {
	case KindText:
		text, _ := value.Text()
		if !preferText {
			log.Debug("Writing text credentials without text preference")
		}
		return text
	case KindStructured:
		fields, _ := value.Fields()
		data, err := m.codec.Encode(fields)
		if err != nil {
			log.WithError(err).Warn("Cannot serialize credentials for writing")
			return ""
		}
		log.Debug("About to write credentials")
		return string(data)
	default:
		return ""
	}
}

// SetText stores a text credential, written to the store as raw text
func (m *Manager) SetText(service, account, text string) {
	m.SetCredentials(NewStorageKey(service, account), Text(text), true)
}

// SetFields stores a structured credential
func (m *Manager) SetFields(service, account string, fields map[string]any) {
	m.SetCredentials(NewStorageKey(service, account), Structured(fields), false)
}

// jobFinished handles the completion of every job this Manager dispatched
func (m *Manager) jobFinished(j Job) {
	key := j.Key()
	log := m.log.WithFields(logrus.Fields{
		"service": key.service,
		"account": key.account,
		"kind":    j.Kind().String(),
		"job":     j.ID(),
	})

	switch j.Kind() {
	case JobRead:
		m.readFinished(log, j)
	case JobWrite, JobDelete:
		if err := j.Err(); err != nil {
			log.WithError(err).Warn("Keychain job finished with error")
			return
		}
		log.Info("Keychain job finished without error")
	default:
		log.Warn("Unknown keychain job finished")
	}
}

func (m *Manager) readFinished(log logrus.FieldLogger, j Job) {
	key := j.Key()

	m.mu.Lock()
	if err := j.Err(); err != nil {
		log.WithError(err).Debug("Read job finished with error")
	} else if value := m.decode(j.Payload()); !value.IsEmpty() {
		log.Debug("Read job finished without error")
		m.credentials[key] = value
	} else {
		log.Debug("Read job returned an empty payload")
	}

	ready := false
	pending := m.readJobs[key.service]
	if _, ok := pending[j.ID()]; ok {
		delete(pending, j.ID())
		ready = len(pending) == 0
	}
	m.mu.Unlock()

	if ready {
		m.emitReady(key.service)
	}
}

// decode prefers a non-empty structured value and falls back to raw text
func (m *Manager) decode(payload string) Value {
	if fields, err := m.codec.Decode([]byte(payload)); err == nil && len(fields) > 0 {
		return Structured(fields)
	}
	return Text(payload)
}

func (m *Manager) emitReady(service string) {
	m.handlersMu.Lock()
	handlers := append([]func(string){}, m.handlers...)
	m.handlersMu.Unlock()

	m.log.WithField("service", service).Debug("Service ready")
	for _, fn := range handlers {
		fn(service)
	}
}
