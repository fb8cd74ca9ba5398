package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"room-router-backend/internal/broker"
	"room-router-backend/internal/config"
	"room-router-backend/internal/room"
)

// RoomLookup validates publish targets against the registry.
type RoomLookup interface {
	Get(id string) (room.Room, error)
}

// Broadcaster fans a delivered payload out to the room's sessions.
type Broadcaster interface {
	Broadcast(roomID string, payload []byte) int
}

// Router is the publish façade. Publish hands the message to the broker and
// nothing else: fan-out to sessions happens exclusively through OnDelivery,
// invoked by the broker listener, so locally-originated and
// other-instance-originated messages share one delivery path.
type Router struct {
	rooms   RoomLookup
	adapter broker.Adapter
	fanout  Broadcaster

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration

	now func() time.Time
}

func New(rooms RoomLookup, adapter broker.Adapter, fanout Broadcaster, cfg config.RouterConfig) *Router {
	return &Router{
		rooms:     rooms,
		adapter:   adapter,
		fanout:    fanout,
		attempts:  cfg.PublishAttempts,
		baseDelay: cfg.RetryBaseDelay,
		maxDelay:  cfg.RetryMaxDelay,
		now:       time.Now,
	}
}

// Publish validates the room, builds the payload, and publishes it to the
// broker. Transient broker failures are retried with exponential backoff up
// to the configured attempt count; exhaustion surfaces to the caller as a
// delivery failure, never a silent drop.
func (r *Router) Publish(ctx context.Context, roomID, senderID, content string) error {
	rm, err := r.rooms.Get(roomID)
	if err != nil {
		return err
	}

	msg := Message{
		Type:      TypeMessage,
		RoomID:    rm.ID,
		Sender:    senderID,
		Content:   content,
		Timestamp: r.now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("router: marshal message: %w", err)
	}

	delay := r.baseDelay
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.adapter.Publish(ctx, rm, payload)
		if lastErr == nil {
			incPublished()
			return nil
		}
		if !errors.Is(lastErr, broker.ErrUnavailable) {
			return fmt.Errorf("router: publish to room %s: %w", roomID, lastErr)
		}
		if attempt == r.attempts {
			break
		}

		log.Printf("router: publish to room %s failed (attempt %d/%d), retrying in %s: %v",
			roomID, attempt, r.attempts, delay, lastErr)
		select {
		case <-ctx.Done():
			return fmt.Errorf("router: publish to room %s: %w", roomID, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	return fmt.Errorf("router: publish to room %s failed after %d attempts: %w", roomID, r.attempts, lastErr)
}

// OnDelivery is the broker listener callback: it fans the payload out to the
// sessions currently joined to the room.
func (r *Router) OnDelivery(roomID string, payload []byte) {
	delivered := r.fanout.Broadcast(roomID, payload)
	if delivered == 0 {
		log.Printf("router: room %s has no subscribed sessions, dropping delivery", roomID)
	}
}
