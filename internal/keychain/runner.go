package keychain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/semmy-space/credstash/internal/credentials"
	"github.com/semmy-space/credstash/internal/metrics"
	"github.com/semmy-space/credstash/internal/secrets"
)

// DefaultWorkers is the number of jobs allowed to touch the store at once
const DefaultWorkers = 4

// ErrRunnerClosed is the error of jobs started after Close
var ErrRunnerClosed = errors.New("keychain runner closed")

// Runner executes credential jobs against a secrets.Store.
// Jobs run on worker goroutines; completions are delivered one at a time
// on a single delivery goroutine.
type Runner struct {
	store   secrets.Store
	log     logrus.FieldLogger
	metrics *metrics.Recorder
	limiter *rate.Limiter
	workers int

	sem       chan struct{}
	completed chan *job
	loopDone  chan struct{}
	inflight  sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers bounds concurrent store access. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithRateLimit throttles store access to perSecond operations.
// Zero or negative disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(r *Runner) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for job execution
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithMetrics records job activity on m
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a Runner and starts its delivery loop.
// Call Close to stop it.
func NewRunner(store secrets.Store, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		log:     logrus.StandardLogger(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.sem = make(chan struct{}, r.workers)
	r.completed = make(chan *job)
	r.loopDone = make(chan struct{})
	go r.deliverLoop()

	return r
}

// NewJob implements credentials.Backend
func (r *Runner) NewJob(kind credentials.JobKind, key credentials.StorageKey, payload string, done credentials.JobFunc) credentials.Job {
	return &job{
		id:      uuid.NewString(),
		runner:  r,
		kind:    kind,
		key:     key,
		payload: payload,
		done:    done,
	}
}

// start schedules j on a worker goroutine
func (r *Runner) start(j *job) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		j.err = ErrRunnerClosed
		r.log.WithFields(j.fields()).Error("Job started after runner was closed")
		go j.done(j)
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	r.metrics.JobDispatched(j.kind.String())
	go r.execute(j)
}

func (r *Runner) execute(j *job) {
	j.started = time.Now()

	r.sem <- struct{}{}
	if r.limiter != nil {
		// The runner has no cancellation, so Wait only fails on an impossible burst
		if err := r.limiter.Wait(context.Background()); err != nil {
			r.log.WithFields(j.fields()).WithError(err).Warn("Rate limiter refused job")
		}
	}
	j.err = r.perform(j)
	<-r.sem

	r.completed <- j
}

// perform runs the store operation for j
func (r *Runner) perform(j *job) error {
	service, account := j.key.Service(), j.key.Account()

	switch j.kind {
	case credentials.JobRead:
		value, err := r.store.Get(service, account)
		if err != nil {
			return err
		}
		j.payload = value
		return nil
	case credentials.JobWrite:
		return r.store.Set(service, account, j.payload)
	case credentials.JobDelete:
		return r.store.Delete(service, account)
	default:
		return fmt.Errorf("unknown job kind %d", j.kind)
	}
}

func (r *Runner) deliverLoop() {
	defer close(r.loopDone)
	for j := range r.completed {
		r.deliver(j)
	}
}

// deliver hands j to its callback. A panicking callback is logged and
// does not stop delivery of other jobs.
func (r *Runner) deliver(j *job) {
	defer r.inflight.Done()
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(j.fields()).WithField("panic", p).Error("Job callback panicked")
		}
	}()

	r.metrics.JobCompleted(j.kind.String(), j.err, time.Since(j.started))

	log := r.log.WithFields(j.fields())
	if j.err != nil {
		log.WithError(j.err).Debug("Keychain job failed")
	} else {
		log.Debug("Keychain job succeeded")
	}

	j.done(j)
}

// Wait blocks until every started job has been delivered, including jobs
// started from completion callbacks while waiting.
func (r *Runner) Wait() {
	r.inflight.Wait()
}

// Close waits for outstanding jobs and stops the delivery loop.
// Jobs started afterwards complete immediately with ErrRunnerClosed.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.Wait()

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		// A job started between Wait and closed=true still has to drain
		r.inflight.Wait()
		close(r.completed)
		<-r.loopDone
	})
}
