// Package config provides configuration loading and validation from
// environment variables and command line flags.
package config

import "time"

// Uplink backend identifiers.
const (
	BackendMQTT  = "mqtt"
	BackendRedis = "redis"
)

// Config holds the complete configuration
type Config struct {
	App      AppConfig
	Uplink   UplinkConfig
	MQTT     MQTTConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Breaker  BreakerConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name            string
	Environment     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CPUAffinity     []int
}

// UplinkConfig holds settings shared by all uplink backends
type UplinkConfig struct {
	Backend           string
	SigningKey        string
	SigningPoolSize   int
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	RetryMaxAttempts  int
	RetryBackoff      time.Duration
	ParkCapacity      int // power of two; encoded payloads parked on failure
}

// MQTTConfig holds MQTT uplink configuration
type MQTTConfig struct {
	Brokers              []string
	ClientID             string
	Topic                string
	QoS                  byte
	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	MaxReconnectInterval time.Duration
	TLS                  TLSConfig
}

// TLSConfig holds TLS settings for the MQTT uplink
type TLSConfig struct {
	Enabled      bool
	CACert       string
	ClientCert   string
	ClientKey    string
	InsecureSkip bool
}

// RedisConfig holds Redis-stream uplink configuration
type RedisConfig struct {
	Addresses    []string
	Password     string
	DB           int
	Stream       string
	MaxLen       int64
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// PipelineConfig holds the per-family queue settings
type PipelineConfig struct {
	QueueSize    int
	Workers      int
	BatchSize    int
	AddTimeout   time.Duration
	MaxSendDelay time.Duration
}

// BreakerConfig holds circuit breaker settings for the publish path
type BreakerConfig struct {
	ErrorThreshold   float64
	SuccessThreshold uint64
	OpenTimeout      time.Duration
	VolumeThreshold  uint64
}

// Load builds the configuration: defaults, then environment, then flags,
// then validation.
func Load() (*Config, error) {
	cfg := GetDefaults()
	LoadFromEnvironment(cfg)
	if err := ParseFlags(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
