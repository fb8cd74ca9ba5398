package main

import (
	"flag"
	"log"

	"room-router-backend/internal/api"
	apirouter "room-router-backend/internal/api/router"
	"room-router-backend/internal/broker"
	"room-router-backend/internal/config"
	"room-router-backend/internal/connection"
	"room-router-backend/internal/database"
	"room-router-backend/internal/queue"
	"room-router-backend/internal/reconciler"
	"room-router-backend/internal/room"
	"room-router-backend/internal/router"
	"room-router-backend/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = loaded
	}

	store, err := newStore(cfg.Store)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}

	registry, err := room.NewRegistry(store)
	if err != nil {
		log.Fatalf("registry init failed: %v", err)
	}
	if err := registry.SeedDefaults(); err != nil {
		log.Fatalf("default rooms failed: %v", err)
	}

	adapter, err := broker.New(cfg.Broker)
	if err != nil {
		log.Fatalf("broker init failed: %v", err)
	}
	defer adapter.Close()

	connections := connection.NewManager(registry, cfg.Connections.SendTimeout)
	rtr := router.New(registry, adapter, connections, cfg.Router)

	rec := reconciler.New(registry, adapter, rtr.OnDelivery, cfg.Reconciler)
	defer rec.Close()

	wsHandler := websocket.NewHandler(connections, registry, rtr, *cfg)

	registry.SetOnChange(func() {
		rec.Sync()
		wsHandler.NotifyRoomsChanged()
	})
	rec.Sync()

	queueManager := queue.NewRequestQueueManager(10, 10)

	server := api.NewAPIServer(
		cfg,
		queueManager,
		registry,
		rtr,
		connections,
		rec,
		wsHandler,
		apirouter.RoomRoutes("/api/v1"),
		apirouter.WebsocketRoutes("/api/v1"),
	)

	server.Run()
}

func newStore(cfg config.StoreConfig) (room.Store, error) {
	switch cfg.Backend {
	case config.StoreDynamoDB:
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return room.NewDynamoStore(db, cfg.Table), nil
	default:
		return room.NewFileStore(cfg.Path), nil
	}
}
