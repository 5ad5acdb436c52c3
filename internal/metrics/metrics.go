package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dirmon"

// Reactor holds the dispatcher's collectors. A nil *Reactor is valid and
// records nothing.
type Reactor struct {
	dispatched *prometheus.CounterVec
	wouldBlock *prometheus.CounterVec
	ioErrors   *prometheus.CounterVec
	queueDepth prometheus.Gauge
	connected  prometheus.Gauge
}

// NewReactor creates the reactor collectors and registers them when
// registerer is non-nil.
func NewReactor(registerer prometheus.Registerer) *Reactor {
	r := &Reactor{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events popped from the queue and dispatched, by kind.",
		}, []string{"kind"}),
		wouldBlock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "would_block_total",
			Help:      "Connection attempts that could not make progress and were re-armed, by kind.",
		}, []string{"kind"}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_errors_total",
			Help:      "Hard connection errors, by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events waiting in the reactor queue.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_up",
			Help:      "1 while a client connection is held.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(r.dispatched, r.wouldBlock, r.ioErrors, r.queueDepth, r.connected)
	}
	return r
}

func (r *Reactor) IncDispatched(kind string) {
	if r == nil {
		return
	}
	r.dispatched.WithLabelValues(kind).Inc()
}

func (r *Reactor) IncWouldBlock(kind string) {
	if r == nil {
		return
	}
	r.wouldBlock.WithLabelValues(kind).Inc()
}

func (r *Reactor) IncIOError(kind string) {
	if r == nil {
		return
	}
	r.ioErrors.WithLabelValues(kind).Inc()
}

func (r *Reactor) SetQueueDepth(depth int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(depth))
}

func (r *Reactor) SetConnected(up bool) {
	if r == nil {
		return
	}
	if up {
		r.connected.Set(1)
		return
	}
	r.connected.Set(0)
}

// WatcherStats is a point-in-time snapshot of watcher counters.
type WatcherStats struct {
	ActiveWatches   int
	EventsDelivered uint64
	Errors          uint64
	RestartAttempts int
}

// RegisterWatcher exposes watcher counters read through stats at scrape time.
func RegisterWatcher(registerer prometheus.Registerer, stats func() WatcherStats) {
	if registerer == nil || stats == nil {
		return
	}
	registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watcher_active_watches",
			Help:      "Directories currently watched.",
		}, func() float64 {
			return float64(stats().ActiveWatches)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_events_delivered_total",
			Help:      "Filesystem events delivered to watch callbacks.",
		}, func() float64 {
			return float64(stats().EventsDelivered)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_errors_total",
			Help:      "Errors reported by the filesystem notifier.",
		}, func() float64 {
			return float64(stats().Errors)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watcher_restart_attempts",
			Help:      "Consecutive notifier restart attempts.",
		}, func() float64 {
			return float64(stats().RestartAttempts)
		}),
	)
}
