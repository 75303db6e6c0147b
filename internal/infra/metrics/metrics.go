package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "powerlink"

// Metrics holds the collectors updated by the link store, pollers and
// redirect sessions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pollTicks       *prometheus.CounterVec
	activePollers   prometheus.Gauge
	redirects       *prometheus.CounterVec
	creates         *prometheus.CounterVec
	evictions       prometheus.Counter
	storageFailures *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_poll_total",
			Help:      "Click-count polls by result.",
		}, []string{"result"}),
		activePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "click_pollers_active",
			Help:      "Click-count pollers currently running.",
		}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_sessions_total",
			Help:      "Finished redirect sessions by outcome.",
		}, []string{"outcome"}),
		creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_create_total",
			Help:      "Short link creation attempts by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_store_evictions_total",
			Help:      "Expired records dropped from the local link list.",
		}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_store_failures_total",
			Help:      "Failed reads and writes of the durable link slot.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.pollTicks,
		m.activePollers,
		m.redirects,
		m.creates,
		m.evictions,
		m.storageFailures,
	)
	return m
}

func (m *Metrics) PollTick(result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.activePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.activePollers.Dec()
}

func (m *Metrics) Redirect(outcome string) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Create(result string) {
	if m == nil {
		return
	}
	m.creates.WithLabelValues(result).Inc()
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *Metrics) StorageFailure(op string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(op).Inc()
}
