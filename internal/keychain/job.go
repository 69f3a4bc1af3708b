package keychain

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/semmy-space/credstash/internal/credentials"
)

// job is a single store operation owned by a Runner until delivered
type job struct {
	id      string
	runner  *Runner
	kind    credentials.JobKind
	key     credentials.StorageKey
	payload string
	err     error
	done    credentials.JobFunc

	once    sync.Once
	started time.Time
}

func (j *job) ID() string                  { return j.id }
func (j *job) Kind() credentials.JobKind   { return j.kind }
func (j *job) Key() credentials.StorageKey { return j.key }
func (j *job) Payload() string             { return j.payload }
func (j *job) Err() error                  { return j.err }

// Start schedules the job. Only the first call has an effect.
func (j *job) Start() {
	j.once.Do(func() {
		j.runner.start(j)
	})
}

func (j *job) fields() logrus.Fields {
	return logrus.Fields{
		"service": j.key.Service(),
		"account": j.key.Account(),
		"kind":    j.kind.String(),
		"job":     j.id,
	}
}

var _ credentials.Job = (*job)(nil)
var _ credentials.Backend = (*Runner)(nil)
