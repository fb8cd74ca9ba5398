package broker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"room-router-backend/internal/config"
	"room-router-backend/internal/room"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PerRoomFilter holds one broker-side subscription per room: an MQTT topic
// subscription keyed on the room's routing key is the filter rule, so the
// broker performs the isolation. Resource count grows linearly with room
// count, bounded by the configured subscription cap.
type PerRoomFilter struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	maxSubs int

	mu      sync.Mutex
	ensured map[string]*roomSub // room id -> subscription resource
}

type roomSub struct {
	topic string
	inbox chan []byte
}

const inboxBuffer = 256

func NewPerRoomFilter(cfg config.MQTTConfig) (*PerRoomFilter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("perroomfilter: connect to broker %s: %w", cfg.BrokerURL, token.Error())
	}

	return newPerRoomFilter(client, cfg), nil
}

// newPerRoomFilter wires an already-connected client; split out so tests can
// substitute a fake mqtt.Client.
func newPerRoomFilter(client mqtt.Client, cfg config.MQTTConfig) *PerRoomFilter {
	return &PerRoomFilter{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		maxSubs: cfg.MaxSubscriptions,
		ensured: make(map[string]*roomSub),
	}
}

func (p *PerRoomFilter) topicFor(rm room.Room) string {
	return p.prefix + rm.RoutingKey
}

func (p *PerRoomFilter) Publish(ctx context.Context, rm room.Room, payload []byte) error {
	token := p.client.Publish(p.topicFor(rm), p.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, token.Error())
	}
	return nil
}

// Ensure creates the broker-side subscription for the room. Re-ensuring an
// already-ensured room is a no-op. When the subscription cap is reached the
// error is surfaced per room, never silently ignored; existing rooms are not
// evicted to make space.
func (p *PerRoomFilter) Ensure(ctx context.Context, rm room.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ensured[rm.ID]; ok {
		return nil
	}
	if p.maxSubs > 0 && len(p.ensured) >= p.maxSubs {
		return fmt.Errorf("%w: %d subscriptions in use", ErrResourceLimitExceeded, len(p.ensured))
	}

	sub := &roomSub{
		topic: p.topicFor(rm),
		inbox: make(chan []byte, inboxBuffer),
	}
	token := p.client.Subscribe(sub.topic, p.qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case sub.inbox <- msg.Payload():
		default:
			log.Printf("perroomfilter: inbox full for topic %q, dropping message", sub.topic)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: subscribe %s: %v", ErrSubscriptionCreateFailed, sub.topic, token.Error())
	}

	p.ensured[rm.ID] = sub
	log.Printf("perroomfilter: subscribed to %q", sub.topic)
	return nil
}

// Remove tears down the broker-side subscription. Idempotent.
func (p *PerRoomFilter) Remove(ctx context.Context, rm room.Room) error {
	p.mu.Lock()
	sub, ok := p.ensured[rm.ID]
	if ok {
		delete(p.ensured, rm.ID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	token := p.client.Unsubscribe(sub.topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: unsubscribe %s: %v", ErrUnavailable, sub.topic, token.Error())
	}
	log.Printf("perroomfilter: unsubscribed from %q", sub.topic)
	return nil
}

// Listen attaches the receive loop to the room's ensured subscription.
func (p *PerRoomFilter) Listen(rm room.Room, deliver DeliveryFunc) (Handle, error) {
	p.mu.Lock()
	sub, ok := p.ensured[rm.ID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: room %s not ensured", ErrSubscriptionCreateFailed, rm.ID)
	}

	quit := make(chan struct{})
	h := &funcHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		for {
			select {
			case <-quit:
				return
			case payload := <-sub.inbox:
				deliver(rm.ID, payload)
			}
		}
	}()
	h.stop = func() {
		close(quit)
	}
	return h, nil
}

func (p *PerRoomFilter) Close() error {
	p.client.Disconnect(250)
	return nil
}
