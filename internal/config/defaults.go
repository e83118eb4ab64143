package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		App:      defaultApp(),
		Uplink:   defaultUplink(),
		MQTT:     defaultMQTT(hostname),
		Redis:    defaultRedis(),
		Pipeline: defaultPipeline(),
		Breaker:  defaultBreaker(),
	}
}

func defaultApp() AppConfig {
	return AppConfig{
		Name:            "telemetry-forwarder",
		Environment:     "production",
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 30 * time.Second,
	}
}

func defaultUplink() UplinkConfig {
	return UplinkConfig{
		Backend:           BackendMQTT,
		SigningKey:        "",
		SigningPoolSize:   4,
		ConnectTimeout:    10 * time.Second,
		PublishTimeout:    5 * time.Second,
		DisconnectTimeout: 2 * time.Second,
		RetryMaxAttempts:  3,
		RetryBackoff:      200 * time.Millisecond,
		ParkCapacity:      256,
	}
}

func defaultMQTT(hostname string) MQTTConfig {
	return MQTTConfig{
		Brokers:              []string{"tcp://localhost:1883"},
		ClientID:             fmt.Sprintf("forwarder-%s-%s", hostname, uuid.NewString()[:8]),
		Topic:                "telemetry/batches",
		QoS:                  1,
		KeepAlive:            30 * time.Second,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         5 * time.Second,
		MaxReconnectInterval: time.Minute,
	}
}

func defaultRedis() RedisConfig {
	return RedisConfig{
		Addresses:    []string{"localhost:6379"},
		DB:           0,
		Stream:       "telemetry-batches",
		MaxLen:       100_000,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func defaultPipeline() PipelineConfig {
	return PipelineConfig{
		QueueSize:    4096,
		Workers:      2,
		BatchSize:    100,
		AddTimeout:   50 * time.Millisecond,
		MaxSendDelay: time.Second,
	}
}

func defaultBreaker() BreakerConfig {
	return BreakerConfig{
		ErrorThreshold:   50,
		SuccessThreshold: 2,
		OpenTimeout:      15 * time.Second,
		VolumeThreshold:  10,
	}
}
