package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "paratransit", Name: "sessions_active", Help: "Live real-time sessions"})
	RoomsActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "paratransit", Name: "rooms_active", Help: "Rooms with at least one member"})

	HandshakesDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paratransit", Name: "handshakes_denied_total", Help: "Connection handshakes denied by the gate"},
		[]string{"reason"},
	)
	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paratransit", Name: "events_relayed_total", Help: "Events delivered to room members"},
		[]string{"event"},
	)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paratransit", Name: "route_transitions_total", Help: "Route lifecycle transitions applied"},
		[]string{"to"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paratransit", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paratransit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
