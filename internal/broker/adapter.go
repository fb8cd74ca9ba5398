package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"room-router-backend/internal/config"
	"room-router-backend/internal/room"
)

var (
	// ErrUnavailable marks transient transport failures; callers retry with
	// bounded backoff.
	ErrUnavailable = errors.New("broker: unavailable")
	// ErrSubscriptionCreateFailed marks a failed Ensure; the reconciler
	// retries it on a timer.
	ErrSubscriptionCreateFailed = errors.New("broker: subscription create failed")
	// ErrResourceLimitExceeded is fatal for that room only: the backend's
	// subscription quota is exhausted.
	ErrResourceLimitExceeded = errors.New("broker: resource limit exceeded")
)

// DeliveryFunc receives inbound payloads for a room.
type DeliveryFunc func(roomID string, payload []byte)

// Handle stops a room listener. Stop cancels delivery and waits until no
// further invocations of the DeliveryFunc are in flight, so a caller may
// release room resources immediately after it returns. Stop is idempotent.
type Handle interface {
	Stop()
}

// Adapter abstracts the pub/sub transport. Exactly one implementation is
// selected at startup; everything downstream depends only on this interface.
//
// Ensure and Remove are idempotent. Listen starts a background task that
// feeds inbound payloads for the room to deliver until the returned Handle
// is stopped.
type Adapter interface {
	Publish(ctx context.Context, rm room.Room, payload []byte) error
	Ensure(ctx context.Context, rm room.Room) error
	Remove(ctx context.Context, rm room.Room) error
	Listen(rm room.Room, deliver DeliveryFunc) (Handle, error)
	Close() error
}

// New builds the configured adapter. Connection failures here are fatal for
// process startup.
func New(cfg config.BrokerConfig) (Adapter, error) {
	switch cfg.Backend {
	case config.BrokerSharedFilter:
		return NewSharedFilter(cfg.Redis)
	case config.BrokerChannelFanout:
		return NewChannelFanout(cfg.Redis)
	case config.BrokerPerRoomFilter:
		return NewPerRoomFilter(cfg.MQTT)
	default:
		return nil, fmt.Errorf("broker: unknown backend %q", cfg.Backend)
	}
}

type funcHandle struct {
	once sync.Once
	stop func()
	done chan struct{}
}

func (h *funcHandle) Stop() {
	h.once.Do(h.stop)
	<-h.done
}
