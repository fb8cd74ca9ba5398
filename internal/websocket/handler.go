package websocket

import (
	"encoding/json"
	"log"
	"net/http"

	"room-router-backend/internal/config"
	"room-router-backend/internal/connection"
	"room-router-backend/internal/room"
	"room-router-backend/internal/router"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket sessions and speaks the
// session protocol: join/leave/publish/list_rooms in,
// joined/left/message/rooms_list/error out.
type Handler struct {
	upgrader   websocket.Upgrader
	conns      *connection.Manager
	registry   *room.Registry
	router     *router.Router
	sendBuffer int
}

func NewHandler(conns *connection.Manager, registry *room.Registry, rtr *router.Router, cfg config.ServerConfig) *Handler {
	allowed := cfg.Server.AllowedOrigins
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowed {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
		conns:      conns,
		registry:   registry,
		router:     rtr,
		sendBuffer: cfg.Connections.SendBuffer,
	}
}

// Serve handles a websocket handshake. The user identity comes from the
// user_id query parameter; authentication is the concern of the proxy layer
// in front of this service.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	// Upgrade writes its own HTTP error response on failure.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	session := connection.NewSession(uuid.NewString(), userID, h.sendBuffer)
	h.conns.Register(session)
	log.Printf("websocket: session %s connected for user %s", session.ID, userID)

	cl := &client{conn: conn, session: session}
	go cl.keepAlive()
	go cl.writePump()
	go cl.readPump(h)
}

// NotifyRoomsChanged pushes the current room list to every connected
// session. Wire it to the registry change hook so clients see new and
// deleted rooms without polling.
func (h *Handler) NotifyRoomsChanged() {
	data, err := json.Marshal(RoomsUpdatedEvent{Type: EventRoomsUpdated, Rooms: h.registry.List()})
	if err != nil {
		log.Printf("websocket: marshal rooms update: %v", err)
		return
	}
	h.conns.BroadcastAll(data)
}
