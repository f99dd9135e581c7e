package events

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "gsi"

// Metrics collects ingest and dispatch counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	received         prometheus.Counter
	rejected         prometheus.Counter
	enqueueFailures  prometheus.Counter
	dispatched       prometheus.Counter
	listenerFailures *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	queueLen atomic.Pointer[func() int]
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_received_total",
			Help:      "Events accepted by the ingest endpoint and enqueued",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_rejected_total",
			Help:      "Requests whose body could not be decoded into an event",
		}),
		enqueueFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enqueue_failures_total",
			Help:      "Events that could not be enqueued because the dispatcher is gone",
		}),
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Events delivered to every registered listener",
		}),
		listenerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "listener_failures_total",
			Help:      "Listener invocations that panicked or returned an error",
		}, []string{"kind", "reason"}),
		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent invoking all listeners for one event",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	// Sampled from the tracked queue on every scrape.
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "queue_depth",
		Help:      "Events waiting for the dispatcher",
	}, m.queueDepth)
	return m
}

func (m *Metrics) incReceived() {
	if m != nil {
		m.received.Inc()
	}
}

func (m *Metrics) incRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *Metrics) incEnqueueFailure() {
	if m != nil {
		m.enqueueFailures.Inc()
	}
}

func (m *Metrics) observeDispatch(start time.Time) {
	if m != nil {
		m.dispatched.Inc()
		m.dispatchDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) incListenerFailure(kind, reason string) {
	if m != nil {
		m.listenerFailures.WithLabelValues(kind, reason).Inc()
	}
}

// trackQueue makes gsi_queue_depth report length().
func (m *Metrics) trackQueue(length func() int) {
	if m != nil {
		m.queueLen.Store(&length)
	}
}

func (m *Metrics) queueDepth() float64 {
	if f := m.queueLen.Load(); f != nil {
		return float64((*f)())
	}
	return 0
}
