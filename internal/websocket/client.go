package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"room-router-backend/internal/connection"
	"room-router-backend/internal/room"

	"github.com/gorilla/websocket"
)

type client struct {
	conn    *websocket.Conn
	session *connection.Session

	mu       sync.Mutex // Mutex for connection access
	isClosed bool
}

func (cl *client) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.session.Done():
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("websocket: ping error for session %s: %v", cl.session.ID, err)
				return
			}
		}
	}
}

func (cl *client) writePump() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.session.Done():
			return
		case frame := <-cl.session.Outbound():
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.conn.WriteMessage(websocket.TextMessage, frame)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("websocket: write error for session %s: %v", cl.session.ID, err)
				return
			}
		}
	}
}

func (cl *client) readPump(h *Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("websocket: recovered from panic in readPump: %v", r)
		}

		h.conns.Unregister(cl.session.ID)
		log.Printf("websocket: session %s disconnected", cl.session.ID)
	}()

	cl.conn.SetReadLimit(512 * 1024)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					break
				}
			}
			log.Printf("websocket: read error for session %s: %v", cl.session.ID, err)
			break
		}

		var action ClientAction
		if err := json.Unmarshal(data, &action); err != nil {
			h.sendError(cl.session.ID, ErrKindInvalidJSON, "invalid JSON")
			continue
		}
		h.handleAction(cl.session, action)
	}
}

func (h *Handler) sendError(sessionID, kind, detail string) {
	h.sendEvent(sessionID, ErrorEvent{Type: EventError, Kind: kind, Detail: detail})
}

func (h *Handler) sendEvent(sessionID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: marshal event: %v", err)
		return
	}
	h.conns.Deliver(sessionID, data)
}

func (h *Handler) handleAction(s *connection.Session, action ClientAction) {
	switch action.Action {
	case ActionJoin:
		rm, count, err := h.conns.Join(s.ID, action.RoomID)
		if err != nil {
			if errors.Is(err, room.ErrNotFound) {
				h.sendError(s.ID, ErrKindRoomNotFound, "room not found")
				return
			}
			log.Printf("websocket: join from session %s to room %s: %v", s.ID, action.RoomID, err)
			h.sendError(s.ID, ErrKindJoinFailed, "could not join room")
			return
		}
		h.sendEvent(s.ID, JoinedEvent{Type: EventJoined, RoomID: rm.ID, Room: rm, MemberCount: count})

	case ActionLeave:
		count := h.conns.Leave(s.ID, action.RoomID)
		h.sendEvent(s.ID, LeftEvent{Type: EventLeft, RoomID: action.RoomID, MemberCount: count})

	case ActionPublish:
		if err := h.router.Publish(context.Background(), action.RoomID, s.Owner, action.Content); err != nil {
			if errors.Is(err, room.ErrNotFound) {
				h.sendError(s.ID, ErrKindRoomNotFound, "room not found")
				return
			}
			log.Printf("websocket: publish from session %s to room %s: %v", s.ID, action.RoomID, err)
			h.sendError(s.ID, ErrKindDeliveryFailed, "message could not be delivered")
		}

	case ActionListRooms:
		h.sendEvent(s.ID, RoomsListEvent{Type: EventRoomsList, Rooms: h.registry.List()})

	case ActionGetRoomsInfo:
		h.sendEvent(s.ID, RoomsInfoEvent{Type: EventRoomsInfo, Rooms: h.registry.List()})

	default:
		h.sendError(s.ID, ErrKindUnknownAction, "unknown action: "+action.Action)
	}
}
