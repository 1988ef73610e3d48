// Package metrics exports stopping-decision observations to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cecil-the-coder/stopkit/pkg/generation"
	"github.com/cecil-the-coder/stopkit/pkg/types"
)

var _ generation.MetricsRecorder = (*Recorder)(nil)

// Recorder implements generation.MetricsRecorder with Prometheus collectors.
// It also keeps in-process totals for Snapshot.
type Recorder struct {
	finished    *prometheus.CounterVec
	faults      *prometheus.CounterVec
	evaluations prometheus.Histogram

	mu       sync.RWMutex
	byReason map[types.FinishReason]int64
	byFault  map[types.FaultKind]int64
	count    int64
	total    time.Duration
	slowest  time.Duration
}

// Option configures a Recorder
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64
}

// WithRegisterer registers the collectors with r instead of the default registry
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithNamespace prefixes every metric name
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithBuckets sets the evaluation duration histogram buckets, in seconds
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// NewRecorder creates and registers the collectors. Registering twice with
// the same registerer panics, as with promauto.
func NewRecorder(opts ...Option) *Recorder {
	o := &options{
		registerer: prometheus.DefaultRegisterer,
		buckets:    []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}
	for _, opt := range opts {
		opt(o)
	}
	factory := promauto.With(o.registerer)

	return &Recorder{
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "generation_requests_finished_total",
			Help:      "Number of generation requests finished, by finish reason.",
		}, []string{"reason"}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "stopping_decision_faults_total",
			Help:      "Number of stopping decision evaluations that panicked or timed out.",
		}, []string{"kind"}),
		evaluations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "stopping_decision_duration_seconds",
			Help:      "Time spent in stopping decision evaluations.",
			Buckets:   o.buckets,
		}),
		byReason: make(map[types.FinishReason]int64),
		byFault:  make(map[types.FaultKind]int64),
	}
}

// ObserveEvaluation records how long one stopping decision call took
func (r *Recorder) ObserveEvaluation(duration time.Duration) {
	r.evaluations.Observe(duration.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.total += duration
	if duration > r.slowest {
		r.slowest = duration
	}
}

// RecordFinish records why a request finished
func (r *Recorder) RecordFinish(reason types.FinishReason) {
	label := reason.String()
	if label == "" {
		label = "none"
	}
	r.finished.WithLabelValues(label).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byReason[reason]++
}

// RecordFault records a faulted evaluation
func (r *Recorder) RecordFault(kind types.FaultKind) {
	r.faults.WithLabelValues(string(kind)).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFault[kind]++
}

// Snapshot is a point-in-time copy of the recorded totals.
type Snapshot struct {
	Finished        map[types.FinishReason]int64
	Faults          map[types.FaultKind]int64
	Evaluations     int64
	AverageDuration time.Duration
	SlowestDuration time.Duration
}

// Snapshot returns the totals recorded so far
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Finished:        make(map[types.FinishReason]int64, len(r.byReason)),
		Faults:          make(map[types.FaultKind]int64, len(r.byFault)),
		Evaluations:     r.count,
		SlowestDuration: r.slowest,
	}
	for k, v := range r.byReason {
		s.Finished[k] = v
	}
	for k, v := range r.byFault {
		s.Faults[k] = v
	}
	if r.count > 0 {
		s.AverageDuration = r.total / time.Duration(r.count)
	}
	return s
}
