package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"room-router-backend/internal/broker"
	"room-router-backend/internal/config"
	"room-router-backend/internal/room"
)

type fakeLookup struct {
	rooms map[string]room.Room
}

func (f *fakeLookup) Get(id string) (room.Room, error) {
	rm, ok := f.rooms[id]
	if !ok {
		return room.Room{}, room.ErrNotFound
	}
	return rm, nil
}

type fakeAdapter struct {
	mu        sync.Mutex
	published [][]byte
	failures  int
	err       error
}

func (f *fakeAdapter) Publish(ctx context.Context, rm room.Room, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeAdapter) Ensure(ctx context.Context, rm room.Room) error { return nil }
func (f *fakeAdapter) Remove(ctx context.Context, rm room.Room) error { return nil }
func (f *fakeAdapter) Close() error                                   { return nil }
func (f *fakeAdapter) Listen(rm room.Room, deliver broker.DeliveryFunc) (broker.Handle, error) {
	return nil, nil
}

type fakeFanout struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func newFakeFanout() *fakeFanout {
	return &fakeFanout{payloads: make(map[string][][]byte)}
}

func (f *fakeFanout) Broadcast(roomID string, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[roomID] = append(f.payloads[roomID], payload)
	return len(f.payloads[roomID])
}

func testConfig() config.RouterConfig {
	return config.RouterConfig{
		PublishAttempts: 3,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxDelay:   4 * time.Millisecond,
	}
}

func testRouter(adapter *fakeAdapter) *Router {
	lookup := &fakeLookup{rooms: map[string]room.Room{
		"general": {ID: "general", Name: "General", RoutingKey: "general"},
	}}
	return New(lookup, adapter, newFakeFanout(), testConfig())
}

func TestPublishUnknownRoom(t *testing.T) {
	rtr := testRouter(&fakeAdapter{})

	err := rtr.Publish(context.Background(), "missing", "alice", "hi")
	if !errors.Is(err, room.ErrNotFound) {
		t.Fatalf("expected room.ErrNotFound, got %v", err)
	}
}

func TestPublishBuildsMessage(t *testing.T) {
	adapter := &fakeAdapter{}
	rtr := testRouter(adapter)
	rtr.now = func() time.Time { return time.Unix(1700000000, 0) }

	if err := rtr.Publish(context.Background(), "general", "alice", "hello"); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(adapter.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(adapter.published))
	}

	var msg Message
	if err := json.Unmarshal(adapter.published[0], &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.Type != TypeMessage || msg.RoomID != "general" || msg.Sender != "alice" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp != 1700000000 {
		t.Fatalf("expected fixed timestamp, got %d", msg.Timestamp)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	adapter := &fakeAdapter{failures: 2, err: broker.ErrUnavailable}
	rtr := testRouter(adapter)

	if err := rtr.Publish(context.Background(), "general", "alice", "hi"); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if len(adapter.published) != 1 {
		t.Fatalf("expected 1 successful publish, got %d", len(adapter.published))
	}
}

func TestPublishExhaustsRetries(t *testing.T) {
	adapter := &fakeAdapter{failures: 5, err: broker.ErrUnavailable}
	rtr := testRouter(adapter)

	err := rtr.Publish(context.Background(), "general", "alice", "hi")
	if !errors.Is(err, broker.ErrUnavailable) {
		t.Fatalf("expected wrapped ErrUnavailable after exhaustion, got %v", err)
	}
	if len(adapter.published) != 0 {
		t.Fatalf("expected no successful publish, got %d", len(adapter.published))
	}
}

func TestPublishDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("payload rejected")
	adapter := &fakeAdapter{failures: 5, err: permanent}
	rtr := testRouter(adapter)

	err := rtr.Publish(context.Background(), "general", "alice", "hi")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error surfaced, got %v", err)
	}
	if adapter.failures != 4 {
		t.Fatalf("expected a single attempt, %d failures left", adapter.failures)
	}
}

func TestPublishHonorsContextCancellation(t *testing.T) {
	adapter := &fakeAdapter{failures: 5, err: broker.ErrUnavailable}
	lookup := &fakeLookup{rooms: map[string]room.Room{
		"general": {ID: "general", RoutingKey: "general"},
	}}
	cfg := config.RouterConfig{
		PublishAttempts: 5,
		RetryBaseDelay:  time.Hour,
		RetryMaxDelay:   time.Hour,
	}
	rtr := New(lookup, adapter, newFakeFanout(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rtr.Publish(ctx, "general", "alice", "hi")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOnDeliveryFansOut(t *testing.T) {
	fanout := newFakeFanout()
	lookup := &fakeLookup{rooms: map[string]room.Room{}}
	rtr := New(lookup, &fakeAdapter{}, fanout, testConfig())

	rtr.OnDelivery("general", []byte("payload"))

	if got := len(fanout.payloads["general"]); got != 1 {
		t.Fatalf("expected 1 fanned-out payload, got %d", got)
	}
}
