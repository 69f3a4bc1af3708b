package credentials

// JobKind is the operation a Job performs against the secret store
type JobKind int

const (
	JobRead JobKind = iota
	JobWrite
	JobDelete
)

// String returns the lowercase operation name
func (k JobKind) String() string {
	switch k {
	case JobRead:
		return "read"
	case JobWrite:
		return "write"
	case JobDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Job is one asynchronous operation against the secret store.
// Accessors other than Start are only meaningful once the completion
// callback has been invoked.
type Job interface {
	// ID uniquely identifies the job for the lifetime of the process
	ID() string
	Kind() JobKind
	Key() StorageKey
	// Payload is the text written by a Write job, or the text retrieved by a
	// successful Read job.
	Payload() string
	// Err is nil when the operation succeeded
	Err() error
	// Start schedules the job. It must not block on store I/O.
	Start()
}

// JobFunc receives a finished job. It is called exactly once per job.
type JobFunc func(Job)

// Backend creates jobs against a secret store.
// Completions are delivered one at a time and never from within Start.
type Backend interface {
	NewJob(kind JobKind, key StorageKey, payload string, done JobFunc) Job
}
