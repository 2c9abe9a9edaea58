package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters and gauges exported on /metrics. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	signalsApplied  *prometheus.CounterVec
	signalsIgnored  prometheus.Counter
	reconnects      *prometheus.CounterVec
	subscribers     prometheus.Gauge
	pushWarnings    prometheus.Counter
	renderedTargets prometheus.Gauge
	recordedSignals prometheus.Counter
}

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signalsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_signals_applied_total",
				Help: "Device signals folded into a live snapshot, by parser rule.",
			},
			[]string{"rule"}),
		signalsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_signals_ignored_total",
			Help: "Device signals that matched no parser rule.",
		}),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_reconnects_total",
				Help: "Reconnect attempts of long-lived websocket connections.",
			},
			[]string{"component"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_live_subscribers",
			Help: "Live websocket subscribers currently attached.",
		}),
		pushWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_push_warnings_total",
			Help: "Zones or entities that could not be written during a device push.",
		}),
		renderedTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_rendered_targets",
			Help: "Targets in the most recent snapshot that pass the detection filter.",
		}),
		recordedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_recorded_signals_total",
			Help: "Signals written to the recorder database.",
		}),
	}
	reg.MustRegister(m.signalsApplied)
	reg.MustRegister(m.signalsIgnored)
	reg.MustRegister(m.reconnects)
	reg.MustRegister(m.subscribers)
	reg.MustRegister(m.pushWarnings)
	reg.MustRegister(m.renderedTargets)
	reg.MustRegister(m.recordedSignals)
	return m
}

// NewRegistry returns a registry carrying the Go runtime and build info
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) SignalApplied(rule string) {
	if m == nil {
		return
	}
	if rule == "" {
		m.signalsIgnored.Inc()
		return
	}
	m.signalsApplied.WithLabelValues(rule).Inc()
}

func (m *Metrics) Reconnect(component string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(component).Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

func (m *Metrics) PushWarnings(n int) {
	if m != nil && n > 0 {
		m.pushWarnings.Add(float64(n))
	}
}

func (m *Metrics) RenderedTargets(n int) {
	if m != nil {
		m.renderedTargets.Set(float64(n))
	}
}

func (m *Metrics) SignalRecorded() {
	if m != nil {
		m.recordedSignals.Inc()
	}
}
