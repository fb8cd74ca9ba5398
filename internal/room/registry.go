package room

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Registry is the source of truth for which rooms exist. Every mutation is
// persisted to the store synchronously before the change is acknowledged,
// and only then is the change listener notified. A crash after an
// acknowledged create therefore never leaves a broker resource without a
// recorded room, and a crash before persistence never leaves a resource for
// a room nobody will reconstruct.
type Registry struct {
	mu       sync.Mutex
	store    Store
	rooms    map[string]Room
	onChange func()

	now   func() time.Time
	newID func() string
}

// NewRegistry loads the persisted room set and builds the in-memory index.
func NewRegistry(store Store) (*Registry, error) {
	rooms, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("registry: load rooms: %w", err)
	}
	if rooms == nil {
		rooms = make(map[string]Room)
	}
	log.Printf("registry: loaded %d rooms", len(rooms))

	return &Registry{
		store: store,
		rooms: rooms,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}, nil
}

// SetOnChange registers the callback invoked after every persisted
// create/delete. Must be set before the registry is handed to callers that
// mutate it.
func (r *Registry) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SeedDefaults creates the initial rooms on a first run against an empty
// store so users have somewhere to chat immediately.
func (r *Registry) SeedDefaults() error {
	r.mu.Lock()
	empty := len(r.rooms) == 0
	r.mu.Unlock()
	if !empty {
		return nil
	}

	defaults := []struct{ name, description string }{
		{"General", "General discussion"},
		{"Welcome", "Welcome new users!"},
	}
	for _, d := range defaults {
		if _, err := r.Create(d.name, d.description, SystemIdentity); err != nil {
			return fmt.Errorf("registry: seed default room %q: %w", d.name, err)
		}
	}
	return nil
}

// Create validates the name, persists the new room, and notifies the change
// listener.
func (r *Registry) Create(name, description, creatorID string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return Room{}, ErrInvalidName
	}

	r.mu.Lock()
	for _, existing := range r.rooms {
		if strings.EqualFold(existing.Name, name) {
			r.mu.Unlock()
			return Room{}, ErrDuplicateName
		}
	}

	id := r.newID()
	rm := Room{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		CreatedAt:   r.now().UTC(),
		RoutingKey:  id,
	}

	r.rooms[rm.ID] = rm
	if err := r.store.Save(r.snapshotLocked()); err != nil {
		delete(r.rooms, rm.ID)
		r.mu.Unlock()
		return Room{}, fmt.Errorf("registry: persist create: %w", err)
	}
	onChange := r.onChange
	r.mu.Unlock()

	log.Printf("registry: created room %q (%s)", rm.Name, rm.ID)
	if onChange != nil {
		onChange()
	}
	return rm, nil
}

func (r *Registry) Get(id string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return rm, nil
}

// List returns all rooms sorted by creation time.
func (r *Registry) List() []Room {
	r.mu.Lock()
	out := make([]Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the room if the requester owns it, persists the removal,
// and notifies the change listener. The reserved system identity may delete
// any room.
func (r *Registry) Delete(id, requesterID string) error {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if requesterID != SystemIdentity && requesterID != rm.CreatedBy {
		r.mu.Unlock()
		return ErrNotAuthorized
	}

	delete(r.rooms, id)
	if err := r.store.Save(r.snapshotLocked()); err != nil {
		r.rooms[id] = rm
		r.mu.Unlock()
		return fmt.Errorf("registry: persist delete: %w", err)
	}
	onChange := r.onChange
	r.mu.Unlock()

	log.Printf("registry: deleted room %q (%s)", rm.Name, rm.ID)
	if onChange != nil {
		onChange()
	}
	return nil
}

// SetMemberCount updates the in-memory member count for a room. Counts are
// dynamic and not persisted.
func (r *Registry) SetMemberCount(id string, count int) {
	r.mu.Lock()
	if rm, ok := r.rooms[id]; ok {
		rm.MemberCount = count
		r.rooms[id] = rm
	}
	r.mu.Unlock()
}

func (r *Registry) snapshotLocked() map[string]Room {
	out := make(map[string]Room, len(r.rooms))
	for id, rm := range r.rooms {
		out[id] = rm
	}
	return out
}
