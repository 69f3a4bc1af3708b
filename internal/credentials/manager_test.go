package credentials

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJob is completed by the test instead of a store
type fakeJob struct {
	id      string
	kind    JobKind
	key     StorageKey
	payload string
	err     error
	done    JobFunc
	started bool
}

func (j *fakeJob) ID() string      { return j.id }
func (j *fakeJob) Kind() JobKind   { return j.kind }
func (j *fakeJob) Key() StorageKey { return j.key }
func (j *fakeJob) Payload() string { return j.payload }
func (j *fakeJob) Err() error      { return j.err }
func (j *fakeJob) Start()          { j.started = true }

func (j *fakeJob) finish(payload string, err error) {
	if j.kind == JobRead {
		j.payload = payload
	}
	j.err = err
	j.done(j)
}

// fakeBackend records every job it creates
type fakeBackend struct {
	mu   sync.Mutex
	jobs []*fakeJob
}

func (b *fakeBackend) NewJob(kind JobKind, key StorageKey, payload string, done JobFunc) Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	j := &fakeJob{
		id:      fmt.Sprintf("job-%d", len(b.jobs)+1),
		kind:    kind,
		key:     key,
		payload: payload,
		done:    done,
	}
	b.jobs = append(b.jobs, j)
	return j
}

func (b *fakeBackend) started(kind JobKind) []*fakeJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*fakeJob
	for _, j := range b.jobs {
		if j.kind == kind && j.started {
			out = append(out, j)
		}
	}
	return out
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// failingCodec decodes like JSON but refuses to encode
type failingCodec struct {
	JSONCodec
}

func (failingCodec) Encode(map[string]any) ([]byte, error) {
	return nil, errors.New("unsupported value")
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeBackend, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	backend := &fakeBackend{}
	m := NewManager(backend, append([]Option{WithLogger(logger)}, opts...)...)
	return m, backend, hook
}

func recordReady(m *Manager) func() []string {
	var mu sync.Mutex
	var ready []string
	m.OnServiceReady(func(service string) {
		mu.Lock()
		defer mu.Unlock()
		ready = append(ready, service)
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ready...)
	}
}

func TestAddServiceWithoutAccounts(t *testing.T) {
	m, backend, _ := newTestManager(t)
	ready := recordReady(m)

	m.AddService("lastfm", nil)

	assert.Equal(t, []string{"lastfm"}, ready())
	assert.Zero(t, backend.count())
	assert.Equal(t, []string{"lastfm"}, m.Services())
}

func TestAddServiceDispatchesOneReadPerAccount(t *testing.T) {
	m, backend, _ := newTestManager(t)
	ready := recordReady(m)

	m.AddService("spotify", []string{"user1", "token1"})

	reads := backend.started(JobRead)
	require.Len(t, reads, 2)
	assert.Equal(t, NewStorageKey("spotify", "user1"), reads[0].Key())
	assert.Equal(t, NewStorageKey("spotify", "token1"), reads[1].Key())
	assert.Empty(t, ready())

	// Completion order is the reverse of dispatch order
	reads[1].finish("tok", nil)
	assert.Empty(t, ready())

	reads[0].finish("joe", nil)
	assert.Equal(t, []string{"spotify"}, ready())

	assert.Equal(t, Text("joe"), m.Lookup("spotify", "user1"))
	assert.Equal(t, Text("tok"), m.Lookup("spotify", "token1"))
}

func TestAddServiceDuplicateAccounts(t *testing.T) {
	m, backend, _ := newTestManager(t)
	ready := recordReady(m)

	m.AddService("spotify", []string{"user1", "user1"})

	reads := backend.started(JobRead)
	require.Len(t, reads, 2)

	reads[0].finish("a", nil)
	assert.Empty(t, ready())
	reads[1].finish("b", nil)
	assert.Equal(t, []string{"spotify"}, ready())
	assert.Equal(t, Text("b"), m.Lookup("spotify", "user1"))
}

func TestReadFailureStillCountsTowardsReady(t *testing.T) {
	m, backend, hook := newTestManager(t)
	ready := recordReady(m)

	m.AddService("spotify", []string{"user1", "token1"})
	reads := backend.started(JobRead)
	require.Len(t, reads, 2)

	reads[0].finish("", errors.New("item not found"))
	reads[1].finish("tok", nil)

	assert.Equal(t, []string{"spotify"}, ready())
	assert.True(t, m.Lookup("spotify", "user1").IsEmpty())
	assert.Equal(t, []string{"token1"}, m.Keys("spotify"))

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Read job finished with error" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestReadPayloadDecoding(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Value
	}{
		{name: "structured", payload: `{"a":1}`, want: Structured(map[string]any{"a": float64(1)})},
		{name: "plain text", payload: "plain-secret", want: Text("plain-secret")},
		{name: "empty object falls back to text", payload: `{}`, want: Text("{}")},
		{name: "json array falls back to text", payload: `["a"]`, want: Text(`["a"]`)},
		{name: "empty payload is absent", payload: "", want: Empty()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, backend, _ := newTestManager(t)
			m.AddService("spotify", []string{"user1"})

			reads := backend.started(JobRead)
			require.Len(t, reads, 1)
			reads[0].finish(tt.payload, nil)

			got := m.Credentials(NewStorageKey("spotify", "user1"))
			assert.True(t, tt.want.Equal(got), "got %v", got)
			if tt.want.IsEmpty() {
				assert.Empty(t, m.Keys("spotify"))
			}
		})
	}
}

func TestSetEmptyWithoutEntryIsNoop(t *testing.T) {
	m, backend, _ := newTestManager(t)
	key := NewStorageKey("spotify", "token1")

	for _, v := range []Value{Empty(), Text(""), Structured(map[string]any{})} {
		m.SetCredentials(key, v, false)
	}

	assert.Zero(t, backend.count())
	assert.True(t, m.Credentials(key).IsEmpty())
}

func TestSetTextDispatchesWrite(t *testing.T) {
	m, backend, _ := newTestManager(t)
	key := NewStorageKey("spotify", "token1")

	m.SetCredentials(key, Text("abc123"), true)

	assert.Equal(t, Text("abc123"), m.Credentials(key))
	writes := backend.started(JobWrite)
	require.Len(t, writes, 1)
	assert.Equal(t, key, writes[0].Key())
	assert.Equal(t, "abc123", writes[0].Payload())
}

func TestSetTextWithoutPreferenceWritesRawText(t *testing.T) {
	m, backend, _ := newTestManager(t)
	key := NewStorageKey("spotify", "token1")

	m.SetCredentials(key, Text("x"), false)

	assert.Equal(t, Text("x"), m.Credentials(key))
	writes := backend.started(JobWrite)
	require.Len(t, writes, 1)
	assert.Equal(t, "x", writes[0].Payload())
}

func TestSetUnchangedValueIsNoop(t *testing.T) {
	m, backend, _ := newTestManager(t)

	m.SetText("spotify", "token1", "abc123")
	m.SetText("spotify", "token1", "abc123")
	m.SetFields("spotify", "user1", map[string]any{"a": "1"})
	m.SetFields("spotify", "user1", map[string]any{"a": "1"})

	assert.Len(t, backend.started(JobWrite), 2)
}

func TestSetChangedValueDispatchesAgain(t *testing.T) {
	m, backend, _ := newTestManager(t)

	m.SetText("spotify", "token1", "abc123")
	m.SetText("spotify", "token1", "def456")

	writes := backend.started(JobWrite)
	require.Len(t, writes, 2)
	assert.Equal(t, "def456", writes[1].Payload())
	assert.Equal(t, Text("def456"), m.Lookup("spotify", "token1"))
}

func TestSetMatchingLoadedValueIsNoop(t *testing.T) {
	m, backend, _ := newTestManager(t)
	m.AddService("spotify", []string{"user1"})
	backend.started(JobRead)[0].finish(`{"a":1}`, nil)

	m.SetCredentials(NewStorageKey("spotify", "user1"), Structured(map[string]any{"a": float64(1)}), false)

	assert.Empty(t, backend.started(JobWrite))
}

func TestSetStructuredEncodesPayload(t *testing.T) {
	m, backend, _ := newTestManager(t)

	m.SetFields("spotify", "user1", map[string]any{"username": "joe", "password": "pw"})

	writes := backend.started(JobWrite)
	require.Len(t, writes, 1)
	assert.JSONEq(t, `{"username":"joe","password":"pw"}`, writes[0].Payload())
}

func TestSetStructuredEncodeFailureStillWrites(t *testing.T) {
	m, backend, hook := newTestManager(t, WithCodec(failingCodec{}))
	key := NewStorageKey("spotify", "user1")
	value := Structured(map[string]any{"a": "1"})

	m.SetCredentials(key, value, false)

	writes := backend.started(JobWrite)
	require.Len(t, writes, 1)
	assert.Empty(t, writes[0].Payload())
	assert.True(t, value.Equal(m.Credentials(key)))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Cannot serialize credentials for writing" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSetEmptyDeletesEntry(t *testing.T) {
	m, backend, _ := newTestManager(t)
	key := NewStorageKey("spotify", "token1")
	m.SetText("spotify", "token1", "abc123")

	m.SetCredentials(key, Empty(), false)

	assert.True(t, m.Credentials(key).IsEmpty())
	assert.Empty(t, m.Keys("spotify"))
	deletes := backend.started(JobDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, key, deletes[0].Key())

	// Already gone: nothing more to delete
	m.SetCredentials(key, Text(""), false)
	assert.Len(t, backend.started(JobDelete), 1)
}

func TestWriteFailureKeepsOptimisticValue(t *testing.T) {
	m, backend, hook := newTestManager(t)
	m.SetText("spotify", "token1", "abc123")

	backend.started(JobWrite)[0].finish("", errors.New("keychain locked"))

	assert.Equal(t, Text("abc123"), m.Lookup("spotify", "token1"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "write", entry.Data["kind"])
}

func TestDeleteCompletionLogsOutcome(t *testing.T) {
	m, backend, hook := newTestManager(t)
	m.SetText("spotify", "token1", "abc123")
	m.SetText("spotify", "token1", "")

	backend.started(JobDelete)[0].finish("", nil)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "delete", entry.Data["kind"])
	assert.True(t, m.Lookup("spotify", "token1").IsEmpty())
}

func TestReAddServiceRestartsLoadCycle(t *testing.T) {
	m, backend, _ := newTestManager(t)
	ready := recordReady(m)

	m.AddService("spotify", []string{"user1"})
	first := backend.started(JobRead)
	require.Len(t, first, 1)

	m.AddService("spotify", []string{"user1", "token1"})
	assert.Equal(t, []string{"user1", "token1"}, m.Accounts("spotify"))

	reads := backend.started(JobRead)
	require.Len(t, reads, 3)

	// The stale read still lands in the cache but does not finish the new cycle
	first[0].finish("old", nil)
	assert.Empty(t, ready())
	assert.Equal(t, Text("old"), m.Lookup("spotify", "user1"))

	reads[1].finish("new", nil)
	reads[2].finish("tok", nil)
	assert.Equal(t, []string{"spotify"}, ready())
	assert.Equal(t, Text("new"), m.Lookup("spotify", "user1"))
}

func TestReadyFiresOncePerAddService(t *testing.T) {
	m, _, _ := newTestManager(t)
	ready := recordReady(m)

	m.AddService("lastfm", nil)
	m.AddService("lastfm", []string{})

	assert.Equal(t, []string{"lastfm", "lastfm"}, ready())
}

func TestReadyHandlerCanReadCache(t *testing.T) {
	m, backend, _ := newTestManager(t)

	var got Value
	m.OnServiceReady(func(service string) {
		got = m.Lookup(service, "user1")
	})

	m.AddService("spotify", []string{"user1"})
	backend.started(JobRead)[0].finish("joe", nil)

	assert.Equal(t, Text("joe"), got)
}

func TestKeysAndServices(t *testing.T) {
	m, _, _ := newTestManager(t)

	m.AddService("spotify", nil)
	m.AddService("lastfm", nil)
	m.SetText("spotify", "b", "2")
	m.SetText("spotify", "a", "1")
	m.SetText("lastfm", "c", "3")

	assert.Equal(t, []string{"lastfm", "spotify"}, m.Services())
	assert.Equal(t, []string{"a", "b"}, m.Keys("spotify"))
	assert.Equal(t, []string{"c"}, m.Keys("lastfm"))
	assert.Empty(t, m.Keys("unknown"))
}

func TestConcurrentSetCredentials(t *testing.T) {
	m, backend, _ := newTestManager(t)
	key := NewStorageKey("spotify", "token1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.SetCredentials(key, Text(fmt.Sprintf("v%d", i%5)), true)
			_ = m.Credentials(key)
		}(i)
	}
	wg.Wait()

	got, ok := m.Credentials(key).Text()
	require.True(t, ok)
	assert.Contains(t, []string{"v0", "v1", "v2", "v3", "v4"}, got)

	// Every dispatched write carries the value cached at that moment
	writes := backend.started(JobWrite)
	require.NotEmpty(t, writes)
	assert.Equal(t, got, writes[len(writes)-1].Payload())
}
