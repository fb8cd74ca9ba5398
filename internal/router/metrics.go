package router

import "github.com/prometheus/client_golang/prometheus"

var messagesPublished = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "room_router_messages_published_total",
		Help: "Total messages accepted by the broker.",
	},
)

func init() {
	prometheus.MustRegister(messagesPublished)
}

func incPublished() {
	messagesPublished.Inc()
}
