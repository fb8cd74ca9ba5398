package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"room-router-backend/internal/api"
	"room-router-backend/internal/broker"
	"room-router-backend/internal/room"
)

type RoomEndpoints interface {
	Rooms(http.ResponseWriter, *http.Request) error
	RoomByID(http.ResponseWriter, *http.Request) error
	Publish(http.ResponseWriter, *http.Request) error
	Health(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type RoomPaths struct {
	RoomsPath   string
	RoomPrefix  string
	PublishPath string
	HealthPath  string
	WSPath      string
}

type roomEndpoints struct {
	server *api.APIServer
	paths  RoomPaths
}

func NewRoomEndpoints(s *api.APIServer, prefix string) RoomEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &roomEndpoints{
		server: s,
		paths: RoomPaths{
			RoomsPath:   base + "/rooms",
			RoomPrefix:  base + "/rooms/",
			PublishPath: base + "/publish",
			HealthPath:  base + "/health",
			WSPath:      base + "/ws",
		},
	}
}

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

type PublishMessageRequest struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type PublishResponse struct {
	Status string `json:"status"`
	Room   string `json:"room"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Broker         string `json:"broker"`
	Rooms          int    `json:"rooms"`
	Sessions       int    `json:"sessions"`
	ListeningRooms int    `json:"listeningRooms"`
	Uptime         string `json:"uptime"`
}

var startTime = time.Now()

func (e *roomEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	switch r.Method {
	case http.MethodGet:
		return api.WriteJSON(w, http.StatusOK, e.server.Registry().List())
	case http.MethodPost:
		return e.createRoom(w, r)
	default:
		return &api.HTTPError{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
}

func (e *roomEndpoints) createRoom(w http.ResponseWriter, r *http.Request) error {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &api.HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid request body", ErrorLog: err}
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "anonymous"
	}

	rm, err := e.server.Registry().Create(req.Name, req.Description, req.CreatedBy)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrDuplicateName):
			return &api.HTTPError{StatusCode: http.StatusConflict, Message: "Room name already in use", ErrorLog: err}
		case errors.Is(err, room.ErrInvalidName):
			return &api.HTTPError{StatusCode: http.StatusBadRequest, Message: "Room name must be 1-50 characters", ErrorLog: err}
		default:
			return &api.HTTPError{StatusCode: http.StatusInternalServerError, Message: "Could not create room", ErrorLog: err}
		}
	}

	// The create has already reconciled synchronously. A room that hit the
	// backend's subscription quota is rejected back to the creator rather
	// than left permanently undeliverable.
	if recErr := e.server.Reconciler().RoomError(rm.ID); errors.Is(recErr, broker.ErrResourceLimitExceeded) {
		if delErr := e.server.Registry().Delete(rm.ID, room.SystemIdentity); delErr != nil {
			return &api.HTTPError{StatusCode: http.StatusInternalServerError, Message: "Could not create room", ErrorLog: delErr}
		}
		return &api.HTTPError{
			StatusCode: http.StatusTooManyRequests,
			Message:    "Room limit reached on the message broker",
			ErrorLog:   recErr,
		}
	}

	return api.WriteJSON(w, http.StatusCreated, rm)
}

func (e *roomEndpoints) RoomByID(w http.ResponseWriter, r *http.Request) error {
	id := strings.TrimPrefix(r.URL.Path, e.paths.RoomPrefix)
	if id == "" || strings.Contains(id, "/") {
		return &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Room not found"}
	}

	switch r.Method {
	case http.MethodGet:
		rm, err := e.server.Registry().Get(id)
		if err != nil {
			return &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Room not found", ErrorLog: err}
		}
		return api.WriteJSON(w, http.StatusOK, rm)

	case http.MethodDelete:
		requester := r.URL.Query().Get("user_id")
		if requester == "" {
			requester = "anonymous"
		}
		if err := e.server.Registry().Delete(id, requester); err != nil {
			switch {
			case errors.Is(err, room.ErrNotFound):
				return &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Room not found", ErrorLog: err}
			case errors.Is(err, room.ErrNotAuthorized):
				return &api.HTTPError{StatusCode: http.StatusForbidden, Message: "Only the room creator may delete it", ErrorLog: err}
			default:
				return &api.HTTPError{StatusCode: http.StatusInternalServerError, Message: "Could not delete room", ErrorLog: err}
			}
		}
		return api.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})

	default:
		return &api.HTTPError{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
}

func (e *roomEndpoints) Publish(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &api.HTTPError{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}

	var req PublishMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &api.HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid request body", ErrorLog: err}
	}
	if req.Sender == "" {
		req.Sender = "anonymous"
	}

	if err := e.server.Router().Publish(r.Context(), req.RoomID, req.Sender, req.Content); err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Room not found", ErrorLog: err}
		}
		return &api.HTTPError{StatusCode: http.StatusBadGateway, Message: "Message could not be delivered", ErrorLog: err}
	}

	rm, err := e.server.Registry().Get(req.RoomID)
	if err != nil {
		// Room deleted between publish and response; the publish itself
		// succeeded.
		return api.WriteJSON(w, http.StatusOK, PublishResponse{Status: "success", Room: req.RoomID})
	}
	return api.WriteJSON(w, http.StatusOK, PublishResponse{Status: "success", Room: rm.Name})
}

func (e *roomEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return api.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Broker:         e.server.Config().Broker.Backend,
		Rooms:          len(e.server.Registry().List()),
		Sessions:       e.server.Connections().SessionCount(),
		ListeningRooms: e.server.Reconciler().ListeningCount(),
		Uptime:         time.Since(startTime).Round(time.Second).String(),
	})
}

func (e *roomEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	e.server.WSHandler().Serve(w, r)
	return nil
}
