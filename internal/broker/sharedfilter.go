package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"room-router-backend/internal/config"
	"room-router-backend/internal/room"

	"github.com/go-redis/redis/v8"
)

// envelope carries the room id alongside the payload on the shared channel
// so the in-process demux can route it. This is the variant's only isolation
// mechanism: a demux bug here is a cross-room leak.
type envelope struct {
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

// SharedFilter publishes every room's traffic on one Redis channel and
// filters on the receiving side. Broker-side resource count stays constant
// no matter how many rooms exist; the filtering cost lives in this process.
type SharedFilter struct {
	client  *redis.Client
	channel string
	routes  *demux

	mu      sync.Mutex
	started bool
	sub     *redis.PubSub
	done    chan struct{}
}

func NewSharedFilter(cfg config.RedisConfig) (*SharedFilter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sharedfilter: connect redis at %s: %w", cfg.Addr, err)
	}

	return &SharedFilter{
		client:  client,
		channel: cfg.Channel,
		routes:  newDemux(),
	}, nil
}

func (s *SharedFilter) Publish(ctx context.Context, rm room.Room, payload []byte) error {
	data, err := json.Marshal(envelope{RoomID: rm.ID, Data: payload})
	if err != nil {
		return fmt.Errorf("sharedfilter: marshal envelope: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ensure is a no-op: the single shared subscription serves every room.
func (s *SharedFilter) Ensure(ctx context.Context, rm room.Room) error {
	return nil
}

// Remove is a no-op; the demux entry is released when the listener stops.
func (s *SharedFilter) Remove(ctx context.Context, rm room.Room) error {
	return nil
}

// Listen binds the room into the demux table and starts the single global
// subscriber on first use. The global loop stays up for the adapter's
// lifetime; an idle shared subscription is this variant's fixed cost.
func (s *SharedFilter) Listen(rm room.Room, deliver DeliveryFunc) (Handle, error) {
	if err := s.startGlobalListener(); err != nil {
		return nil, err
	}
	s.routes.bind(rm.ID, deliver)

	h := &funcHandle{done: make(chan struct{})}
	h.stop = func() {
		// unbind waits out in-flight dispatches for this room.
		s.routes.unbind(rm.ID)
		close(h.done)
	}
	return h, nil
}

func (s *SharedFilter) startGlobalListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	sub := s.client.Subscribe(context.Background(), s.channel)
	if _, err := sub.Receive(context.Background()); err != nil {
		sub.Close()
		return fmt.Errorf("%w: subscribe %s: %v", ErrSubscriptionCreateFailed, s.channel, err)
	}

	s.sub = sub
	s.done = make(chan struct{})
	s.started = true
	log.Printf("sharedfilter: listening on channel %q", s.channel)

	go func(done chan struct{}) {
		defer close(done)
		for msg := range sub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("sharedfilter: drop malformed message: %v", err)
				continue
			}
			if env.RoomID == "" {
				log.Printf("sharedfilter: drop message without room id")
				continue
			}
			s.routes.dispatch(env.RoomID, env.Data)
		}
	}(s.done)

	return nil
}

func (s *SharedFilter) Close() error {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.sub = nil
	s.started = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
	return s.client.Close()
}
