package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"room-router-backend/internal/api"
	"room-router-backend/internal/broker"
	"room-router-backend/internal/config"
	"room-router-backend/internal/connection"
	"room-router-backend/internal/queue"
	"room-router-backend/internal/reconciler"
	"room-router-backend/internal/room"
	"room-router-backend/internal/router"
)

type memoryStore struct {
	mu    sync.Mutex
	rooms map[string]room.Room
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rooms: make(map[string]room.Room)}
}

func (m *memoryStore) Load() (map[string]room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]room.Room, len(m.rooms))
	for id, rm := range m.rooms {
		out[id] = rm
	}
	return out, nil
}

func (m *memoryStore) Save(rooms map[string]room.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = make(map[string]room.Room, len(rooms))
	for id, rm := range rooms {
		m.rooms[id] = rm
	}
	return nil
}

// stubAdapter accepts every broker operation; maxRooms caps Ensure like a
// backend subscription quota.
type stubAdapter struct {
	mu        sync.Mutex
	ensured   map[string]struct{}
	published map[string][][]byte
	maxRooms  int
}

func newStubAdapter(maxRooms int) *stubAdapter {
	return &stubAdapter{
		ensured:   make(map[string]struct{}),
		published: make(map[string][][]byte),
		maxRooms:  maxRooms,
	}
}

func (a *stubAdapter) Publish(ctx context.Context, rm room.Room, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.published[rm.ID] = append(a.published[rm.ID], payload)
	return nil
}

func (a *stubAdapter) Ensure(ctx context.Context, rm room.Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.ensured[rm.ID]; ok {
		return nil
	}
	if a.maxRooms > 0 && len(a.ensured) >= a.maxRooms {
		return fmt.Errorf("%w: %d rooms", broker.ErrResourceLimitExceeded, len(a.ensured))
	}
	a.ensured[rm.ID] = struct{}{}
	return nil
}

func (a *stubAdapter) Remove(ctx context.Context, rm room.Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ensured, rm.ID)
	return nil
}

func (a *stubAdapter) Listen(rm room.Room, deliver broker.DeliveryFunc) (broker.Handle, error) {
	return noopHandle{}, nil
}

func (a *stubAdapter) Close() error { return nil }

type noopHandle struct{}

func (noopHandle) Stop() {}

func setupRoomHandler(t *testing.T, adapter broker.Adapter) (http.Handler, *room.Registry) {
	t.Helper()

	cfg := config.Default()
	registry, err := room.NewRegistry(newMemoryStore())
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}

	connections := connection.NewManager(registry, 50*time.Millisecond)
	rtr := router.New(registry, adapter, connections, config.RouterConfig{
		PublishAttempts: 1,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxDelay:   time.Millisecond,
	})
	rec := reconciler.New(registry, adapter, rtr.OnDelivery, config.ReconcilerConfig{RetryInterval: time.Hour})
	registry.SetOnChange(rec.Sync)

	queueManager := queue.NewRequestQueueManager(10, 1)
	server := api.NewAPIServer(cfg, queueManager, registry, rtr, connections, rec, nil)
	roomEndpoints := NewRoomEndpoints(server, "/api/v1")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rooms", server.MakeHTTPHandleFunc(roomEndpoints.Rooms))
	mux.HandleFunc("/api/v1/rooms/", server.MakeHTTPHandleFunc(roomEndpoints.RoomByID))
	mux.HandleFunc("/api/v1/publish", server.MakeHTTPHandleFunc(roomEndpoints.Publish))
	mux.HandleFunc("/api/v1/health", server.MakeHTTPHandleFunc(roomEndpoints.Health))

	t.Cleanup(func() {
		rec.Close()
		queueManager.Shutdown()
	})
	return mux, registry
}

func createRoom(t *testing.T, handler http.Handler, name, createdBy string) room.Room {
	t.Helper()
	body, _ := json.Marshal(CreateRoomRequest{Name: name, CreatedBy: createdBy})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("create room %s: status %d: %s", name, res.Code, res.Body.String())
	}
	var rm room.Room
	if err := json.Unmarshal(res.Body.Bytes(), &rm); err != nil {
		t.Fatalf("decode created room: %v", err)
	}
	return rm
}

func TestCreateAndListRooms(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))

	created := createRoom(t, handler, "Lobby", "alice")
	if created.Name != "Lobby" || created.CreatedBy != "alice" {
		t.Fatalf("unexpected created room: %+v", created)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("list rooms: status %d", res.Code)
	}
	var rooms []room.Room
	if err := json.Unmarshal(res.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("decode room list: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != created.ID {
		t.Fatalf("unexpected room list: %+v", rooms)
	}
}

func TestCreateRoomDuplicateName(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))
	createRoom(t, handler, "Lobby", "alice")

	body, _ := json.Marshal(CreateRoomRequest{Name: "lobby", CreatedBy: "bob"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
}

func TestCreateRoomInvalidName(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))

	body, _ := json.Marshal(CreateRoomRequest{Name: "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateRoomBrokerQuota(t *testing.T) {
	handler, registry := setupRoomHandler(t, newStubAdapter(1))
	createRoom(t, handler, "First", "alice")

	body, _ := json.Marshal(CreateRoomRequest{Name: "Second", CreatedBy: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", res.Code, res.Body.String())
	}
	// The rejected room must not linger in the registry.
	if got := len(registry.List()); got != 1 {
		t.Fatalf("expected rejected room rolled back, got %d rooms", got)
	}
}

func TestGetRoomByID(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))
	created := createRoom(t, handler, "Lobby", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/"+created.ID, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var rm room.Room
	if err := json.Unmarshal(res.Body.Bytes(), &rm); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if rm.ID != created.ID {
		t.Fatalf("unexpected room: %+v", rm)
	}
}

func TestGetMissingRoom(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/does-not-exist", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDeleteRoom(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))
	created := createRoom(t, handler, "Lobby", "alice")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/"+created.ID+"?user_id=alice", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/"+created.ID, nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected room gone, got %d", res.Code)
	}
}

func TestDeleteRoomRequiresCreator(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))
	created := createRoom(t, handler, "Lobby", "alice")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/"+created.ID+"?user_id=mallory", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestPublishEndpoint(t *testing.T) {
	adapter := newStubAdapter(0)
	handler, _ := setupRoomHandler(t, adapter)
	created := createRoom(t, handler, "Lobby", "alice")

	body, _ := json.Marshal(PublishMessageRequest{RoomID: created.ID, Content: "hello", Sender: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/publish", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp PublishResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.Room != "Lobby" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	adapter.mu.Lock()
	published := len(adapter.published[created.ID])
	adapter.mu.Unlock()
	if published != 1 {
		t.Fatalf("expected 1 broker publish, got %d", published)
	}
}

func TestPublishUnknownRoom(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))

	body, _ := json.Marshal(PublishMessageRequest{RoomID: "ghost", Content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/publish", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := setupRoomHandler(t, newStubAdapter(0))
	createRoom(t, handler, "Lobby", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(res.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Rooms != 1 || health.ListeningRooms != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
