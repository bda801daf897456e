package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the runtime's instrumentation. A nil *Metrics is valid and
// turns every recording call into a no-op, so the runtime never branches on
// whether metrics were configured.
type Metrics struct {
	dispatches       prometheus.Counter
	dispatchDuration prometheus.Histogram
	listenerFailures prometheus.Counter
	historyEvictions prometheus.Counter
	debugSnapshots   prometheus.Counter
	logEvents        prometheus.Gauge
}

// NewMetrics registers the runtime collectors with reg and returns the
// handle to record against.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "redix_dispatches_total",
			Help: "Events accepted and applied by Dispatch.",
		}),
		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "redix_dispatch_duration_seconds",
			Help:    "Wall time of the Dispatch pipeline, listeners included.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		listenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "redix_listener_failures_total",
			Help: "Listener invocations that panicked and were recovered.",
		}),
		historyEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "redix_history_evictions_total",
			Help: "History entries evicted because the ring was full.",
		}),
		debugSnapshots: factory.NewCounter(prometheus.CounterOpts{
			Name: "redix_debug_snapshots_total",
			Help: "Debug snapshots captured on the snapshot cadence.",
		}),
		logEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "redix_log_events",
			Help: "Events currently held by the event log.",
		}),
	}
}

func (m *Metrics) recordDispatch(start time.Time) {
	if m == nil {
		return
	}
	m.dispatches.Inc()
	m.dispatchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordListenerFailure() {
	if m == nil {
		return
	}
	m.listenerFailures.Inc()
}

func (m *Metrics) recordHistoryEviction() {
	if m == nil {
		return
	}
	m.historyEvictions.Inc()
}

func (m *Metrics) recordDebugSnapshot() {
	if m == nil {
		return
	}
	m.debugSnapshots.Inc()
}

func (m *Metrics) recordLogSize(n int) {
	if m == nil {
		return
	}
	m.logEvents.Set(float64(n))
}
