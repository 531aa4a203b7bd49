package watcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the watcher subsystem. A nil *Metrics
// is a no-op, which keeps unit tests quiet.
type Metrics struct {
	StartsTotal    prometheus.Counter
	WakeUpsTotal   *prometheus.CounterVec
	WakeUpDuration prometheus.Histogram
	ResolvesTotal  prometheus.Counter
	NotesTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns watcher metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casebridge_watcher_starts_total",
			Help: "Total watchers started.",
		}),
		WakeUpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casebridge_watcher_wakeups_total",
			Help: "Total wake-up handler runs by outcome.",
		}, []string{"outcome"}),
		WakeUpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "casebridge_watcher_wakeup_duration_seconds",
			Help:    "Duration of wake-up handler runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		ResolvesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casebridge_watcher_resolves_total",
			Help: "Total resolve events sent to the paging system.",
		}),
		NotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casebridge_watcher_notes_total",
			Help: "Total incident note operations by op and outcome.",
		}, []string{"op", "outcome"}),
	}

	reg.MustRegister(
		m.StartsTotal,
		m.WakeUpsTotal,
		m.WakeUpDuration,
		m.ResolvesTotal,
		m.NotesTotal,
	)

	return m
}

func (m *Metrics) incStarted() {
	if m == nil {
		return
	}
	m.StartsTotal.Inc()
}

func (m *Metrics) observeWakeUp(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.WakeUpsTotal.WithLabelValues(outcome).Inc()
	m.WakeUpDuration.Observe(seconds)
}

func (m *Metrics) incResolved() {
	if m == nil {
		return
	}
	m.ResolvesTotal.Inc()
}

func (m *Metrics) incNote(op string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.NotesTotal.WithLabelValues(op, outcome).Inc()
}
