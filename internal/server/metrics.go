package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

const metricsNamespace = "parley"

// Metrics holds the relay's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	onlineUsers     prometheus.Gauge
	liveConnections prometheus.Gauge
	droppedEvents   *prometheus.CounterVec
	routedMessages  *prometheus.CounterVec
	deliveredEvents *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    prometheus.Summary
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "presence",
			Name:      "online_users",
			Help:      "Number of users with at least one live connection",
		}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "presence",
			Name:      "connections",
			Help:      "Number of live WebSocket connections",
		}),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "presence",
				Name:      "dropped_events_total",
				Help:      "Number of events not accepted by a connection",
			},
			[]string{"event"},
		),
		routedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "messages_total",
				Help:      "Number of persisted messages by kind",
			},
			[]string{"kind"},
		),
		deliveredEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "delivered_total",
				Help:      "Number of live deliveries of routed messages by kind",
			},
			[]string{"kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Number of HTTP requests by method and status",
			},
			[]string{"method", "code"},
		),
		httpDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
		}),
	}
	m.registry.MustRegister(
		m.onlineUsers,
		m.liveConnections,
		m.droppedEvents,
		m.routedMessages,
		m.deliveredEvents,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// SetOnline implements presence.Metrics.
func (m *Metrics) SetOnline(users, connections int) {
	m.onlineUsers.Set(float64(users))
	m.liveConnections.Set(float64(connections))
}

// EventDropped implements presence.Metrics.
func (m *Metrics) EventDropped(event string) { m.droppedEvents.WithLabelValues(event).Inc() }

// MessageRouted implements router.Metrics.
func (m *Metrics) MessageRouted(kind string, delivered int) {
	m.routedMessages.WithLabelValues(kind).Inc()
	m.deliveredEvents.WithLabelValues(kind).Add(float64(delivered))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(r *http.Request, status, _ int, d time.Duration) {
	m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	m.httpDuration.Observe(d.Seconds())
}

// accessLog logs each request and feeds the HTTP collectors.
func (m *Metrics) accessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		m.observe(r, status, size, d)
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})
}
