// Package mqtt implements the MQTT uplink on top of Paho with secure TLS
// configuration and token polling that honors caller deadlines.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

// client implements ports.Uplink using a single Paho connection.
type client struct {
	client mqttlib.Client
	cfg    *config.MQTTConfig
	logger ports.Logger

	isConnected atomic.Bool

	mu     sync.Mutex
	upFns  []func()
	sealed bool
}

// NewClient creates the MQTT uplink from configuration. The connection is
// not established until Connect.
func NewClient(cfg *config.Config, logger ports.Logger) (ports.Uplink, error) {
	c := &client{
		cfg:    &cfg.MQTT,
		logger: logger.WithFields(ports.Field{Key: "component", Value: "mqtt-uplink"}),
	}

	opts := mqttlib.NewClientOptions()
	for _, broker := range cfg.MQTT.Brokers {
		opts.AddBroker(broker)
	}
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetKeepAlive(cfg.MQTT.KeepAlive)
	opts.SetConnectTimeout(cfg.MQTT.ConnectTimeout)
	opts.SetMaxReconnectInterval(cfg.MQTT.MaxReconnectInterval)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetProtocolVersion(4) // MQTT 3.1.1

	if cfg.MQTT.TLS.Enabled {
		tlsConf, err := createTLSConfig(&cfg.MQTT.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConf)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqttlib.NewClient(opts)
	return c, nil
}

// OnConnectionUp registers a callback fired on every (re-)connect.
func (c *client) OnConnectionUp(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.logger.Error("OnConnectionUp called after Connect; callback ignored")
		return
	}
	c.upFns = append(c.upFns, fn)
}

func (c *client) onConnect(mqttlib.Client) {
	c.isConnected.Store(true)
	c.logger.Info("MQTT connected")

	c.mu.Lock()
	fns := c.upFns
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *client) onConnectionLost(_ mqttlib.Client, err error) {
	c.isConnected.Store(false)
	c.logger.Warn("MQTT connection lost", ports.Field{Key: "error", Value: err})
}

// Connect establishes the connection, honoring both the configured
// timeout and the context deadline.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()

	token := c.client.Connect()
	if err := c.waitForToken(ctx, token, c.cfg.ConnectTimeout, "connect"); err != nil {
		return err
	}
	c.isConnected.Store(true)
	return nil
}

// Disconnect gracefully disconnects.
func (c *client) Disconnect(timeout time.Duration) {
	if c.client == nil {
		return
	}
	ms := timeout.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	c.client.Disconnect(uint(ms)) // #nosec G115 -- clamped above
	c.isConnected.Store(false)
}

// IsConnected returns current connection status.
func (c *client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected() && c.isConnected.Load()
}

// Publish sends one payload to the configured topic.
func (c *client) Publish(ctx context.Context, payload []byte) error {
	token := c.client.Publish(c.cfg.Topic, c.cfg.QoS, false, payload)
	return c.waitForToken(ctx, token, c.cfg.WriteTimeout, "publish")
}

// waitForToken waits for a Paho token, honoring both ctx and a max wait.
// Polls with a bounded tick so the goroutine exits promptly on ctx.Done.
func (c *client) waitForToken(ctx context.Context, token mqttlib.Token, wait time.Duration, op string) error {
	waitUntil := time.Now().Add(wait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(waitUntil) {
		waitUntil = dl
	}

	tick := wait / 20
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}

	for !token.WaitTimeout(tick) {
		if ctx.Err() != nil {
			return fmt.Errorf("mqtt %s canceled: %w", op, ctx.Err())
		}
		if !time.Now().Before(waitUntil) {
			return fmt.Errorf("mqtt %s timed out after %v", op, wait)
		}
		runtime.Gosched()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt %s failed: %w", op, err)
	}
	return nil
}

// createTLSConfig builds the tls.Config for the broker connection.
func createTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	tlsConf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkip, // #nosec G402 -- operator opt-in for test brokers
	}

	if cfg.CACert != "" {
		caPEM, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CACert)
		}
		tlsConf.RootCAs = pool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	return tlsConf, nil
}
