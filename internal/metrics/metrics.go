package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records keychain job activity on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	jobsDispatched *prometheus.CounterVec
	jobsCompleted  *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	servicesReady  *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		jobsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstash_jobs_dispatched_total",
				Help: "Total number of keychain jobs started",
			},
			[]string{"kind"},
		),
		jobsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstash_jobs_completed_total",
				Help: "Total number of keychain jobs completed",
			},
			[]string{"kind", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credstash_job_duration_seconds",
				Help:    "Time from job start to completion in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),
		servicesReady: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstash_services_ready_total",
				Help: "Total number of completed service load cycles",
			},
			[]string{"service"},
		),
	}

	r.registry.MustRegister(r.jobsDispatched, r.jobsCompleted, r.jobDuration, r.servicesReady)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// JobDispatched counts a started job
func (r *Recorder) JobDispatched(kind string) {
	if r == nil {
		return
	}
	r.jobsDispatched.WithLabelValues(kind).Inc()
}

// JobCompleted counts a finished job and observes its duration
func (r *Recorder) JobCompleted(kind string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.jobsCompleted.WithLabelValues(kind, status).Inc()
	r.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ServiceReady counts a finished load cycle
func (r *Recorder) ServiceReady(service string) {
	if r == nil {
		return
	}
	r.servicesReady.WithLabelValues(service).Inc()
}

// Sample is one flattened metric value
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Snapshot gathers every metric into a flat, sorted list.
// Histograms contribute their _count and _sum.
func (r *Recorder) Snapshot() ([]Sample, error) {
	if r == nil {
		return nil, nil
	}

	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var samples []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%s", lp.GetName(), lp.GetValue()))
			}
			labels := strings.Join(pairs, ",")

			switch {
			case m.GetCounter() != nil:
				samples = append(samples, Sample{Name: mf.GetName(), Labels: labels, Value: m.GetCounter().GetValue()})
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				samples = append(samples,
					Sample{Name: mf.GetName() + "_count", Labels: labels, Value: float64(h.GetSampleCount())},
					Sample{Name: mf.GetName() + "_sum", Labels: labels, Value: h.GetSampleSum()},
				)
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}
