package connection

import "github.com/prometheus/client_golang/prometheus"

var (
	connSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_router_sessions",
			Help: "Current number of live client sessions.",
		},
	)
	connActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_router_active_rooms",
			Help: "Rooms with at least one joined session.",
		},
	)
	connMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_router_messages_delivered_total",
			Help: "Total messages delivered to client sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(connSessions, connActiveRooms, connMessagesDelivered)
}

func incConnections() {
	connSessions.Inc()
}

func decConnections() {
	connSessions.Dec()
}

func setActiveRooms(count int) {
	connActiveRooms.Set(float64(count))
}

func addDelivered(count int) {
	connMessagesDelivered.Add(float64(count))
}
