package config

import (
	"fmt"
	"time"
)

// Broker backend selectors. The backend is chosen once at startup; the rest
// of the process only ever sees the broker.Adapter interface.
const (
	BrokerSharedFilter  = "sharedfilter"
	BrokerPerRoomFilter = "perroomfilter"
	BrokerChannelFanout = "channelfanout"
)

// Room store backend selectors.
const (
	StoreFile     = "file"
	StoreDynamoDB = "dynamodb"
)

// ServerConfig is the root configuration for a server instance.
type ServerConfig struct {
	Server      HTTPConfig       `yaml:"server"`
	Store       StoreConfig      `yaml:"store"`
	Broker      BrokerConfig     `yaml:"broker"`
	Router      RouterConfig     `yaml:"router"`
	Connections ConnectionConfig `yaml:"connections"`
	Reconciler  ReconcilerConfig `yaml:"reconciler"`
}

// HTTPConfig holds the HTTP/WebSocket listen settings.
type HTTPConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig selects and configures the durable room store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// File backend.
	Path string `yaml:"path"`
	// DynamoDB backend.
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// BrokerConfig selects and configures the pub/sub backend.
type BrokerConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	MQTT    MQTTConfig  `yaml:"mqtt"`
}

// RedisConfig is shared by the sharedfilter and channelfanout backends.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Single channel carrying every room's traffic (sharedfilter).
	Channel string `yaml:"channel"`
	// Per-room channel name prefix (channelfanout).
	ChannelPrefix string `yaml:"channel_prefix"`
}

// MQTTConfig configures the perroomfilter backend.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	// Hard cap on concurrent room subscriptions; 0 means unlimited.
	MaxSubscriptions int           `yaml:"max_subscriptions"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

// RouterConfig holds the publish retry policy.
type RouterConfig struct {
	PublishAttempts int           `yaml:"publish_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"`
}

// ConnectionConfig holds per-session delivery settings.
type ConnectionConfig struct {
	SendTimeout time.Duration `yaml:"send_timeout"`
	SendBuffer  int           `yaml:"send_buffer"`
}

// ReconcilerConfig holds the subscription retry settings.
type ReconcilerConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFile
	}
	if c.Store.Path == "" {
		c.Store.Path = "rooms.json"
	}
	if c.Store.Table == "" {
		c.Store.Table = "Rooms"
	}
	if c.Broker.Backend == "" {
		c.Broker.Backend = BrokerChannelFanout
	}
	if c.Broker.Redis.Addr == "" {
		c.Broker.Redis.Addr = "localhost:6379"
	}
	if c.Broker.Redis.Channel == "" {
		c.Broker.Redis.Channel = "rooms.broadcast"
	}
	if c.Broker.Redis.ChannelPrefix == "" {
		c.Broker.Redis.ChannelPrefix = "room:"
	}
	if c.Broker.MQTT.TopicPrefix == "" {
		c.Broker.MQTT.TopicPrefix = "rooms/"
	}
	if c.Broker.MQTT.ClientID == "" {
		c.Broker.MQTT.ClientID = "room-router"
	}
	if c.Broker.MQTT.ConnectTimeout == 0 {
		c.Broker.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.Router.PublishAttempts == 0 {
		c.Router.PublishAttempts = 5
	}
	if c.Router.RetryBaseDelay == 0 {
		c.Router.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.Router.RetryMaxDelay == 0 {
		c.Router.RetryMaxDelay = 5 * time.Second
	}
	if c.Connections.SendTimeout == 0 {
		c.Connections.SendTimeout = 5 * time.Second
	}
	if c.Connections.SendBuffer == 0 {
		c.Connections.SendBuffer = 16
	}
	if c.Reconciler.RetryInterval == 0 {
		c.Reconciler.RetryInterval = 15 * time.Second
	}
}

// Validate rejects configurations the process must not start with.
func (c *ServerConfig) Validate() error {
	switch c.Store.Backend {
	case StoreFile, StoreDynamoDB:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.Store.Backend == StoreDynamoDB && c.Store.Region == "" {
		return fmt.Errorf("store.region: required for the dynamodb backend")
	}

	switch c.Broker.Backend {
	case BrokerSharedFilter, BrokerChannelFanout:
		if c.Broker.Redis.Addr == "" {
			return fmt.Errorf("broker.redis.addr: required for the %s backend", c.Broker.Backend)
		}
	case BrokerPerRoomFilter:
		if c.Broker.MQTT.BrokerURL == "" {
			return fmt.Errorf("broker.mqtt.broker_url: required for the perroomfilter backend")
		}
		if c.Broker.MQTT.MaxSubscriptions < 0 {
			return fmt.Errorf("broker.mqtt.max_subscriptions: must not be negative")
		}
	default:
		return fmt.Errorf("broker.backend: unknown backend %q", c.Broker.Backend)
	}

	if c.Router.PublishAttempts < 1 {
		return fmt.Errorf("router.publish_attempts: must be at least 1")
	}
	return nil
}
