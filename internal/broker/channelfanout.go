package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"room-router-backend/internal/config"
	"room-router-backend/internal/room"

	"github.com/go-redis/redis/v8"
)

// ChannelFanout addresses one externally-routed Redis channel per room,
// named from the routing key. Channels exist implicitly, so Ensure and
// Remove have nothing to do. Delivery is at most once to currently-listening
// subscribers: messages published while no listener is attached are lost,
// which is this variant's consistency weakening relative to the others.
type ChannelFanout struct {
	client *redis.Client
	prefix string
}

func NewChannelFanout(cfg config.RedisConfig) (*ChannelFanout, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("channelfanout: connect redis at %s: %w", cfg.Addr, err)
	}

	return &ChannelFanout{client: client, prefix: cfg.ChannelPrefix}, nil
}

func (c *ChannelFanout) channelFor(rm room.Room) string {
	return c.prefix + rm.RoutingKey
}

func (c *ChannelFanout) Publish(ctx context.Context, rm room.Room, payload []byte) error {
	if err := c.client.Publish(ctx, c.channelFor(rm), string(payload)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *ChannelFanout) Ensure(ctx context.Context, rm room.Room) error {
	return nil
}

func (c *ChannelFanout) Remove(ctx context.Context, rm room.Room) error {
	return nil
}

// Listen subscribes to the room's channel and pumps inbound payloads to
// deliver until the handle is stopped.
func (c *ChannelFanout) Listen(rm room.Room, deliver DeliveryFunc) (Handle, error) {
	channel := c.channelFor(rm)
	sub := c.client.Subscribe(context.Background(), channel)
	if _, err := sub.Receive(context.Background()); err != nil {
		sub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrSubscriptionCreateFailed, channel, err)
	}
	log.Printf("channelfanout: subscribed to %q", channel)

	h := &funcHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		for msg := range sub.Channel() {
			deliver(rm.ID, []byte(msg.Payload))
		}
		log.Printf("channelfanout: unsubscribed from %q", channel)
	}()
	h.stop = func() {
		sub.Close()
	}
	return h, nil
}

func (c *ChannelFanout) Close() error {
	return c.client.Close()
}
