package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exposed by the server, adapted
// from the teacher's single global registry of tick/connection gauges down
// to what this domain's rooms/sessions actually report.
var Metrics = struct {
	TickDuration       prometheus.Histogram
	RoomsActive        prometheus.Gauge
	PlayersActive      prometheus.Gauge
	WSConnectionsTotal prometheus.Counter
	WSMessagesTotal    prometheus.Counter
	CommandsDropped    *prometheus.CounterVec
	ConnectionRejected *prometheus.CounterVec
}{
	TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spacebot_tick_duration_seconds",
		Help:    "Time to execute one Game.Tick call.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
	}),
	RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacebot_rooms_active",
		Help: "Number of rooms currently tracked by the registry.",
	}),
	PlayersActive: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacebot_players_active",
		Help: "Number of player sessions currently connected across all rooms.",
	}),
	WSConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacebot_ws_connections_total",
		Help: "Total WebSocket connections accepted.",
	}),
	WSMessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacebot_ws_messages_total",
		Help: "Total inbound WebSocket text frames processed.",
	}),
	CommandsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacebot_commands_dropped_total",
		Help: "Commands dropped, labeled by reason.",
	}, []string{"reason"}),
	ConnectionRejected: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacebot_connections_rejected_total",
		Help: "Connections rejected before upgrade, labeled by reason.",
	}, []string{"reason"}),
}
