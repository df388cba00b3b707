// Package metrics exposes the bot's prometheus instrumentation.
// Every method is safe to call on a nil *Metrics, which is how a disabled
// metrics endpoint is represented.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/memebot/core/logger"
)

const namespace = "memebot"

// Metrics groups collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	updates          *prometheus.CounterVec
	received         *prometheus.CounterVec
	events           *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	renderDuration   *prometheus.HistogramVec
	outbound         *prometheus.CounterVec
	swept            prometheus.Counter
}

// New builds and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_updates_total",
			Help:      "Webhook deliveries acknowledged, by decode result.",
		}, []string{"result"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates reaching the handlers, by kind.",
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound conversation events, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Persisted session state changes.",
		}, []string{"from", "to"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "External provider calls, by outcome.",
		}, []string{"provider", "op", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "External provider call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "op"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Caption render pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Messages sent to chats, by kind.",
		}, []string{"kind"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staging_files_removed_total",
			Help:      "Files removed from the image staging dir.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.received, m.events, m.transitions,
		m.providerCalls, m.providerDuration, m.renderDuration,
		m.outbound, m.swept,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_dropped_total",
			Help:      "Log lines discarded because the async log queue was full.",
		}, func() float64 { return float64(logger.DroppedLines()) }),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// WebhookUpdate counts one acknowledged webhook delivery.
func (m *Metrics) WebhookUpdate(result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(result).Inc()
}

// UpdateReceived counts one update that reached the bot handlers.
func (m *Metrics) UpdateReceived(kind string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(kind).Inc()
}

// EventHandled counts one processed conversation event.
func (m *Metrics) EventHandled(kind, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}

// Transition counts a persisted state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ProviderCall records one external call.
func (m *Metrics) ProviderCall(provider, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, op, outcome(err)).Inc()
	m.providerDuration.WithLabelValues(provider, op).Observe(d.Seconds())
}

// Rendered records one render pipeline run.
func (m *Metrics) Rendered(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// MessageSent counts an outbound text or photo.
func (m *Metrics) MessageSent(kind string) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(kind).Inc()
}

// FilesSwept adds n removed staging files.
func (m *Metrics) FilesSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}
