package reconciler

import "github.com/prometheus/client_golang/prometheus"

var (
	syncRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_router_reconcile_runs_total",
			Help: "Total reconciliation passes executed.",
		},
	)
	listeningRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_router_listening_rooms",
			Help: "Rooms with an active broker listener.",
		},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, listeningRooms)
}

func incSyncRuns() {
	syncRuns.Inc()
}

func setListening(count int) {
	listeningRooms.Set(float64(count))
}
