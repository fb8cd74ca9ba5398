package api

import (
	"fmt"
	"net/http"

	"room-router-backend/internal/config"
	"room-router-backend/internal/connection"
	"room-router-backend/internal/queue"
	"room-router-backend/internal/reconciler"
	"room-router-backend/internal/room"
	"room-router-backend/internal/router"
	"room-router-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	cfg                 *config.ServerConfig
	requestQueueManager *queue.RequestQueueManager
	registry            *room.Registry
	router              *router.Router
	connections         *connection.Manager
	reconciler          *reconciler.Reconciler
	wsHandler           *websocket.Handler
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(
	cfg *config.ServerConfig,
	rqm *queue.RequestQueueManager,
	registry *room.Registry,
	rtr *router.Router,
	connections *connection.Manager,
	rec *reconciler.Reconciler,
	wsHandler *websocket.Handler,
	registrars ...RouteRegistrar,
) *APIServer {
	return &APIServer{
		cfg:                 cfg,
		requestQueueManager: rqm,
		registry:            registry,
		router:              rtr,
		connections:         connections,
		reconciler:          rec,
		wsHandler:           wsHandler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, cfg.Server.ListenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.cfg.Server.ListenAddr)

	if err := http.ListenAndServe(s.cfg.Server.ListenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Config() *config.ServerConfig {
	return s.cfg
}

func (s *APIServer) Registry() *room.Registry {
	return s.registry
}

func (s *APIServer) Router() *router.Router {
	return s.router
}

func (s *APIServer) Connections() *connection.Manager {
	return s.connections
}

func (s *APIServer) Reconciler() *reconciler.Reconciler {
	return s.reconciler
}

func (s *APIServer) WSHandler() *websocket.Handler {
	return s.wsHandler
}
