package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hubkeeper"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors for one process. Each instance owns its registry
// so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionState          *prometheus.GaugeVec
	ConnectAttemptsTotal     prometheus.Counter
	ReconnectsScheduledTotal prometheus.Counter
	ConnectionTimeoutsTotal  prometheus.Counter
	ReconnectExhaustedTotal  prometheus.Counter
	GroupJoinsTotal          *prometheus.CounterVec
	KeepalivePingsTotal      *prometheus.CounterVec
	EventsEmittedTotal       *prometheus.CounterVec
	HubMessagesTotal         *prometheus.CounterVec
	InvocationsTotal         *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current hub connection state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		ConnectAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of transport connect attempts.",
		}),
		ReconnectsScheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of automatic reconnects scheduled.",
		}),
		ConnectionTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_timeouts_total",
			Help:      "Total number of connect attempts failed by the watchdog.",
		}),
		ReconnectExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_exhausted_total",
			Help:      "Total number of times the retry budget ran out.",
		}),
		GroupJoinsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_joins_total",
			Help:      "Total number of group join invocations by result.",
		}, []string{"result"}),
		KeepalivePingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_pings_total",
			Help:      "Total number of application keepalive pings by result.",
		}, []string{"result"}),
		EventsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of lifecycle events emitted by kind.",
		}, []string{"kind"}),
		HubMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_messages_received_total",
			Help:      "Total number of inbound hub invocations by target.",
		}, []string{"target"}),
		InvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_invocations_total",
			Help:      "Total number of outbound hub invocations by method and result.",
		}, []string{"method", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectionState,
		m.ConnectAttemptsTotal,
		m.ReconnectsScheduledTotal,
		m.ConnectionTimeoutsTotal,
		m.ReconnectExhaustedTotal,
		m.GroupJoinsTotal,
		m.KeepalivePingsTotal,
		m.EventsEmittedTotal,
		m.HubMessagesTotal,
		m.InvocationsTotal,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SetState marks state as the active one among all known states.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.ConnectAttemptsTotal.Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectsScheduledTotal.Inc()
}

func (m *Metrics) ConnectionTimeout() {
	if m == nil {
		return
	}
	m.ConnectionTimeoutsTotal.Inc()
}

func (m *Metrics) ReconnectExhausted() {
	if m == nil {
		return
	}
	m.ReconnectExhaustedTotal.Inc()
}

func (m *Metrics) GroupJoin(err error) {
	if m == nil {
		return
	}
	m.GroupJoinsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) KeepalivePing(err error) {
	if m == nil {
		return
	}
	m.KeepalivePingsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) EventEmitted(kind string) {
	if m == nil {
		return
	}
	m.EventsEmittedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) HubMessage(target string) {
	if m == nil {
		return
	}
	m.HubMessagesTotal.WithLabelValues(target).Inc()
}

func (m *Metrics) Invocation(method string, err error) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(method, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
