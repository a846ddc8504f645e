// Package metrics exposes the service's Prometheus collectors. Everything is
// registered on the default registry and served by promhttp in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "interact",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Number of live WebSocket connections.",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "interact",
		Name:      "active_streams",
		Help:      "Number of streams with at least one viewer.",
	})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interact",
		Name:      "events_total",
		Help:      "Inbound client events by message type.",
	}, []string{"type"})

	RejectedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interact",
		Name:      "rejected_events_total",
		Help:      "Client events answered with an error frame, by error code.",
	}, []string{"code"})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "interact",
		Name:      "broadcasts_total",
		Help:      "Room fan-out operations performed.",
	})

	SlowClientDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "interact",
		Subsystem: "ws",
		Name:      "slow_client_drops_total",
		Help:      "Connections closed because their send buffer was full.",
	})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "interact",
		Name:      "persistence_failures_total",
		Help:      "Database writes that failed while handling an event.",
	})
)
