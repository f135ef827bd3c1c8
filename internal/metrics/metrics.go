// Package metrics holds the controller's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sdn"

// Metrics groups every collector exported by the controller. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Events             *prometheus.CounterVec
	HandlerPanics      prometheus.Counter
	PacketIns          *prometheus.CounterVec
	RulesInstalled     *prometheus.CounterVec
	ChannelErrors      *prometheus.CounterVec
	StatsPolls         prometheus.Counter
	StatsRequests      prometheus.Counter
	Samples            *prometheus.CounterVec
	Verdicts           *prometheus.CounterVec
	ClassifierFailures prometheus.Counter
	Switches           prometheus.Gauge
	Blocks             prometheus.Gauge
}

// New creates the collectors and registers them on a private registry along
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Switch events handled by the event loop.",
		}, []string{"kind"}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "handler_panics_total",
			Help: "Event handlers that panicked and were recovered.",
		}),
		PacketIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "packet_in_decisions_total",
			Help: "Packet-in events by forwarding decision.",
		}, []string{"reason"}),
		RulesInstalled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rules_installed_total",
			Help: "Flow rules sent to switches by priority class.",
		}, []string{"class"}),
		ChannelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "channel_errors_total",
			Help: "Switch commands that the channel rejected.",
		}, []string{"op"}),
		StatsPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stats_polls_total",
			Help: "Stats monitor ticks.",
		}),
		StatsRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stats_requests_total",
			Help: "Flow stats requests accepted by the channel.",
		}),
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "flow_samples_total",
			Help: "Flow counter samples by extraction outcome.",
		}, []string{"outcome"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "classifier_verdicts_total",
			Help: "Classifier verdicts on emitted feature vectors.",
		}, []string{"verdict"}),
		ClassifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "classifier_failures_total",
			Help: "Classifications that failed open to normal.",
		}),
		Switches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "switches",
			Help: "Registered switches.",
		}),
		Blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "blocked_sources",
			Help: "Identities currently blocked.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Events, m.HandlerPanics, m.PacketIns, m.RulesInstalled, m.ChannelErrors,
		m.StatsPolls, m.StatsRequests, m.Samples, m.Verdicts, m.ClassifierFailures,
		m.Switches, m.Blocks,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FailureCounter returns the classifier failure counter, or nil.
func (m *Metrics) FailureCounter() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.ClassifierFailures
}

func (m *Metrics) Event(kind string) {
	if m != nil {
		m.Events.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Panic() {
	if m != nil {
		m.HandlerPanics.Inc()
	}
}

func (m *Metrics) PacketIn(reason string) {
	if m != nil {
		m.PacketIns.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RuleInstalled(class string) {
	if m != nil {
		m.RulesInstalled.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) ChannelError(op string) {
	if m != nil {
		m.ChannelErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) Poll(requested int) {
	if m != nil {
		m.StatsPolls.Inc()
		m.StatsRequests.Add(float64(requested))
	}
}

func (m *Metrics) Sample(outcome string) {
	if m != nil {
		m.Samples.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Verdict(verdict string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict).Inc()
	}
}

func (m *Metrics) SetSwitches(n int) {
	if m != nil {
		m.Switches.Set(float64(n))
	}
}

func (m *Metrics) SetBlocks(n int) {
	if m != nil {
		m.Blocks.Set(float64(n))
	}
}
