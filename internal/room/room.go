package room

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("room: not found")
	ErrDuplicateName = errors.New("room: name already in use")
	ErrNotAuthorized = errors.New("room: not authorized")
	ErrInvalidName   = errors.New("room: invalid name")
)

// SystemIdentity may delete any room regardless of ownership. Used by the
// seeded default rooms and operational tooling.
const SystemIdentity = "system"

const maxNameLength = 50

// Room is the durable record of a chat room. ID is immutable for the room's
// lifetime. RoutingKey correlates broker-side resources (filter rules,
// channel names) to the room; it equals ID unless a backend needs a
// broker-safe name.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	RoutingKey  string    `json:"routingKey"`
	// MemberCount is maintained in memory from live connections; the
	// persisted value is only the count at save time.
	MemberCount int `json:"memberCount"`
}
