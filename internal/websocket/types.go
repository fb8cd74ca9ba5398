package websocket

import "room-router-backend/internal/room"

// Client-to-server action frame. Content is only set for publish.
type ClientAction struct {
	Action  string `json:"action"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

const (
	ActionJoin         = "join"
	ActionLeave        = "leave"
	ActionPublish      = "publish"
	ActionListRooms    = "list_rooms"
	ActionGetRoomsInfo = "get_rooms_info"
)

type JoinedEvent struct {
	Type        string    `json:"type"`
	RoomID      string    `json:"roomId"`
	Room        room.Room `json:"room"`
	MemberCount int       `json:"memberCount"`
}

type LeftEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

type RoomsListEvent struct {
	Type  string      `json:"type"`
	Rooms []room.Room `json:"rooms"`
}

// RoomsInfoEvent answers an explicit get_rooms_info request; the rooms
// carry current member counts.
type RoomsInfoEvent struct {
	Type  string      `json:"type"`
	Rooms []room.Room `json:"rooms"`
}

// RoomsUpdatedEvent is pushed to every connected session whenever a room is
// created or deleted.
type RoomsUpdatedEvent struct {
	Type  string      `json:"type"`
	Rooms []room.Room `json:"rooms"`
}

type ErrorEvent struct {
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

const (
	EventJoined       = "joined"
	EventLeft         = "left"
	EventRoomsList    = "rooms_list"
	EventRoomsInfo    = "rooms_info"
	EventRoomsUpdated = "rooms_updated"
	EventError        = "error"
)

const (
	ErrKindRoomNotFound   = "room_not_found"
	ErrKindInvalidJSON    = "invalid_json"
	ErrKindUnknownAction  = "unknown_action"
	ErrKindDeliveryFailed = "delivery_failed"
	ErrKindJoinFailed     = "join_failed"
)
