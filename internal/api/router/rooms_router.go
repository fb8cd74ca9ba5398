package router

import (
	"net/http"

	"room-router-backend/internal/api"
	"room-router-backend/internal/api/endpoints"
)

func RoomRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		roomEndpoints := endpoints.NewRoomEndpoints(s, prefix)

		mux.HandleFunc(prefix+"/rooms", s.MakeHTTPHandleFunc(roomEndpoints.Rooms))
		mux.HandleFunc(prefix+"/rooms/", s.MakeHTTPHandleFunc(roomEndpoints.RoomByID))
		mux.HandleFunc(prefix+"/publish", s.MakeHTTPHandleFunc(roomEndpoints.Publish))
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(roomEndpoints.Health))
	}
}

func WebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		roomEndpoints := endpoints.NewRoomEndpoints(s, prefix)

		mux.HandleFunc(prefix+"/ws", s.MakeHTTPHandleFunc(roomEndpoints.Websocket))
	}
}
