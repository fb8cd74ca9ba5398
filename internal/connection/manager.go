package connection

import (
	"log"
	"sync"
	"time"

	"room-router-backend/internal/room"
)

// RoomDirectory is the slice of the room registry the manager needs: join
// validation and member-count updates.
type RoomDirectory interface {
	Get(id string) (room.Room, error)
	SetMemberCount(id string, count int)
}

// Manager tracks live sessions and their room memberships and performs the
// in-process fan-out to sessions. All state lives behind one mutex; the maps
// never escape. A session appears in a room's member set if and only if the
// room appears in that session's joined set.
type Manager struct {
	directory   RoomDirectory
	sendTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	// room id -> session id -> session
	members map[string]map[string]*Session
	// session id -> joined room ids
	joined map[string]map[string]struct{}
}

func NewManager(directory RoomDirectory, sendTimeout time.Duration) *Manager {
	return &Manager{
		directory:   directory,
		sendTimeout: sendTimeout,
		sessions:    make(map[string]*Session),
		members:     make(map[string]map[string]*Session),
		joined:      make(map[string]map[string]struct{}),
	}
}

// Register tracks a new session. The session joins no rooms until it sends
// explicit join actions.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.joined[s.ID] = make(map[string]struct{})
	total := len(m.sessions)
	m.mu.Unlock()

	incConnections()
	log.Printf("connection: session %s (%s) connected, total %d", s.ID, s.Owner, total)
}

// Join subscribes the session to a room. Returns the room and its member
// count after the join. Fails with room.ErrNotFound for unknown rooms.
func (m *Manager) Join(sessionID, roomID string) (room.Room, int, error) {
	rm, err := m.directory.Get(roomID)
	if err != nil {
		return room.Room{}, 0, err
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return room.Room{}, 0, ErrSessionClosed
	}
	if m.members[roomID] == nil {
		m.members[roomID] = make(map[string]*Session)
	}
	m.members[roomID][sessionID] = s
	m.joined[sessionID][roomID] = struct{}{}
	count := len(m.members[roomID])
	m.mu.Unlock()

	m.directory.SetMemberCount(roomID, count)
	setActiveRooms(m.activeRoomCount())
	log.Printf("connection: %s joined room %s (%d members)", s.Owner, roomID, count)
	return rm, count, nil
}

// Leave unsubscribes the session from a room. Leaving a room that was never
// joined is a no-op, not an error.
func (m *Manager) Leave(sessionID, roomID string) int {
	m.mu.Lock()
	if joined, ok := m.joined[sessionID]; ok {
		delete(joined, roomID)
	}
	count := m.removeMemberLocked(sessionID, roomID)
	m.mu.Unlock()

	m.directory.SetMemberCount(roomID, count)
	setActiveRooms(m.activeRoomCount())
	return count
}

// Unregister drops the session and implicitly leaves every joined room.
// Safe to call concurrently with in-flight broadcasts and idempotent.
func (m *Manager) Unregister(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)

	left := make(map[string]int)
	for roomID := range m.joined[sessionID] {
		left[roomID] = m.removeMemberLocked(sessionID, roomID)
	}
	delete(m.joined, sessionID)
	total := len(m.sessions)
	m.mu.Unlock()

	s.close()
	for roomID, count := range left {
		m.directory.SetMemberCount(roomID, count)
	}
	decConnections()
	setActiveRooms(m.activeRoomCount())
	log.Printf("connection: session %s (%s) disconnected, total %d", s.ID, s.Owner, total)
}

// Broadcast sends the payload to every session currently joined to the room
// and reports the delivery count. Each send is bounded by the configured
// timeout; a session that cannot accept in time is treated as failed and
// unregistered without aborting delivery to the others.
func (m *Manager) Broadcast(roomID string, payload []byte) int {
	m.mu.Lock()
	targets := make([]*Session, 0, len(m.members[roomID]))
	for _, s := range m.members[roomID] {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		return 0
	}

	delivered := 0
	for _, s := range targets {
		if m.send(s, payload) {
			delivered++
			continue
		}
		log.Printf("connection: send to session %s failed, pruning", s.ID)
		m.Unregister(s.ID)
	}
	if delivered > 0 {
		addDelivered(delivered)
	}
	return delivered
}

// BroadcastAll sends the payload to every live session regardless of room
// membership. Used for registry-wide notifications such as room list
// changes. Failed sessions are pruned the same way Broadcast prunes them.
func (m *Manager) BroadcastAll(payload []byte) int {
	m.mu.Lock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		if m.send(s, payload) {
			delivered++
			continue
		}
		log.Printf("connection: send to session %s failed, pruning", s.ID)
		m.Unregister(s.ID)
	}
	return delivered
}

// Deliver queues a frame for one session, bounded by the send timeout.
func (m *Manager) Deliver(sessionID string, payload []byte) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.send(s, payload)
}

// SessionCount reports the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemberCounts returns the member count of every room with at least one
// member.
func (m *Manager) MemberCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.members))
	for roomID, members := range m.members {
		out[roomID] = len(members)
	}
	return out
}

// JoinedRooms returns the rooms the session is currently joined to.
func (m *Manager) JoinedRooms(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.joined[sessionID]))
	for roomID := range m.joined[sessionID] {
		out = append(out, roomID)
	}
	return out
}

func (m *Manager) send(s *Session, payload []byte) bool {
	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()
	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	case <-timer.C:
		return false
	}
}

func (m *Manager) removeMemberLocked(sessionID, roomID string) int {
	members, ok := m.members[roomID]
	if !ok {
		return 0
	}
	delete(members, sessionID)
	count := len(members)
	if count == 0 {
		delete(m.members, roomID)
	}
	return count
}

func (m *Manager) activeRoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members)
}
