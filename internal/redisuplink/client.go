// Package redisuplink implements the alternative uplink that appends
// batch payloads to a Redis stream. Useful when the remote service tails
// a stream instead of terminating MQTT.
package redisuplink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

// payloadField is the stream entry field carrying the encoded batch.
const payloadField = "payload"

// client implements ports.Uplink over a Redis stream.
type client struct {
	rdb    redis.UniversalClient
	cfg    *config.RedisConfig
	logger ports.Logger

	isConnected atomic.Bool

	mu     sync.Mutex
	upFns  []func()
	sealed bool
}

// NewClient creates the Redis-stream uplink from configuration.
func NewClient(cfg *config.Config, logger ports.Logger) (ports.Uplink, error) {
	if len(cfg.Redis.Addresses) == 0 {
		return nil, fmt.Errorf("redisuplink: no addresses configured")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Redis.Addresses,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	return &client{
		rdb:    rdb,
		cfg:    &cfg.Redis,
		logger: logger.WithFields(ports.Field{Key: "component", Value: "redis-uplink"}),
	}, nil
}

// OnConnectionUp registers a callback fired when the uplink verifies the
// connection. Must be called before Connect.
func (c *client) OnConnectionUp(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.logger.Error("OnConnectionUp called after Connect; callback ignored")
		return
	}
	c.upFns = append(c.upFns, fn)
}

// Connect verifies the server is reachable and releases the callbacks.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.sealed = true
	fns := c.upFns
	c.mu.Unlock()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	c.isConnected.Store(true)
	c.logger.Info("Redis uplink connected",
		ports.Field{Key: "stream", Value: c.cfg.Stream},
	)
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Disconnect closes the client. The pool close is synchronous; timeout is
// accepted for interface symmetry.
func (c *client) Disconnect(_ time.Duration) {
	c.isConnected.Store(false)
	if err := c.rdb.Close(); err != nil {
		c.logger.Warn("Redis close failed", ports.Field{Key: "error", Value: err})
	}
}

// IsConnected returns whether the last health probe succeeded.
func (c *client) IsConnected() bool {
	return c.isConnected.Load()
}

// Publish appends the payload to the stream with approximate trimming so
// the stream cannot grow without bound.
func (c *client) Publish(ctx context.Context, payload []byte) error {
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		MaxLen: c.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to %s failed: %w", c.cfg.Stream, err)
	}
	return nil
}
