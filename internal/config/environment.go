package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnvironment loads configuration from environment variables
func LoadFromEnvironment(cfg *Config) {
	applyAppEnv(cfg)
	applyUplinkEnv(cfg)
	applyMQTTEnv(cfg)
	applyRedisEnv(cfg)
	applyPipelineEnv(cfg)
	applyBreakerEnv(cfg)
}

func applyAppEnv(cfg *Config) {
	if val := os.Getenv("APP_NAME"); val != "" {
		cfg.App.Name = val
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		cfg.App.Environment = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.App.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.App.LogFormat = val
	}
	if val := getEnvDuration("APP_SHUTDOWN_TIMEOUT"); val != 0 {
		cfg.App.ShutdownTimeout = val
	}
	if val := os.Getenv("APP_CPU_AFFINITY"); val != "" {
		cfg.App.CPUAffinity = parseIntList(val)
	}
}

func applyUplinkEnv(cfg *Config) {
	if val := os.Getenv("UPLINK_BACKEND"); val != "" {
		cfg.Uplink.Backend = val
	}
	if val := os.Getenv("UPLINK_SIGNING_KEY"); val != "" {
		cfg.Uplink.SigningKey = val
	}
	if val := getEnvInt("UPLINK_SIGNING_POOL_SIZE"); val != 0 {
		cfg.Uplink.SigningPoolSize = val
	}
	if val := getEnvDuration("UPLINK_CONNECT_TIMEOUT"); val != 0 {
		cfg.Uplink.ConnectTimeout = val
	}
	if val := getEnvDuration("UPLINK_PUBLISH_TIMEOUT"); val != 0 {
		cfg.Uplink.PublishTimeout = val
	}
	if val := getEnvDuration("UPLINK_DISCONNECT_TIMEOUT"); val != 0 {
		cfg.Uplink.DisconnectTimeout = val
	}
	if val := getEnvInt("UPLINK_RETRY_MAX_ATTEMPTS"); val != 0 {
		cfg.Uplink.RetryMaxAttempts = val
	}
	if val := getEnvDuration("UPLINK_RETRY_BACKOFF"); val != 0 {
		cfg.Uplink.RetryBackoff = val
	}
	if val := getEnvInt("UPLINK_PARK_CAPACITY"); val != 0 {
		cfg.Uplink.ParkCapacity = val
	}
}

func applyMQTTEnv(cfg *Config) {
	if val := os.Getenv("MQTT_BROKERS"); val != "" {
		cfg.MQTT.Brokers = splitList(val)
	}
	if val := os.Getenv("MQTT_CLIENT_ID"); val != "" {
		cfg.MQTT.ClientID = val
	}
	if val := os.Getenv("MQTT_TOPIC"); val != "" {
		cfg.MQTT.Topic = val
	}
	if val := getEnvInt("MQTT_QOS"); val >= 0 && val <= 2 && os.Getenv("MQTT_QOS") != "" {
		cfg.MQTT.QoS = byte(val)
	}
	if val := getEnvDuration("MQTT_KEEP_ALIVE"); val != 0 {
		cfg.MQTT.KeepAlive = val
	}
	if val := getEnvDuration("MQTT_CONNECT_TIMEOUT"); val != 0 {
		cfg.MQTT.ConnectTimeout = val
	}
	if val := getEnvDuration("MQTT_WRITE_TIMEOUT"); val != 0 {
		cfg.MQTT.WriteTimeout = val
	}
	if val := getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL"); val != 0 {
		cfg.MQTT.MaxReconnectInterval = val
	}
	applyMQTTTLSEnv(cfg)
}

func applyMQTTTLSEnv(cfg *Config) {
	if val := getEnvBool("MQTT_TLS_ENABLED"); val != nil {
		cfg.MQTT.TLS.Enabled = *val
	}
	if val := os.Getenv("MQTT_TLS_CA_CERT"); val != "" {
		cfg.MQTT.TLS.CACert = val
	}
	if val := os.Getenv("MQTT_TLS_CLIENT_CERT"); val != "" {
		cfg.MQTT.TLS.ClientCert = val
	}
	if val := os.Getenv("MQTT_TLS_CLIENT_KEY"); val != "" {
		cfg.MQTT.TLS.ClientKey = val
	}
	if val := getEnvBool("MQTT_TLS_INSECURE_SKIP"); val != nil {
		cfg.MQTT.TLS.InsecureSkip = *val
	}
}

func applyRedisEnv(cfg *Config) {
	if val := os.Getenv("REDIS_ADDRESSES"); val != "" {
		cfg.Redis.Addresses = splitList(val)
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := getEnvInt("REDIS_DB"); os.Getenv("REDIS_DB") != "" {
		cfg.Redis.DB = val
	}
	if val := os.Getenv("REDIS_STREAM"); val != "" {
		cfg.Redis.Stream = val
	}
	if val := getEnvInt64("REDIS_STREAM_MAXLEN"); val != 0 {
		cfg.Redis.MaxLen = val
	}
	if val := getEnvDuration("REDIS_DIAL_TIMEOUT"); val != 0 {
		cfg.Redis.DialTimeout = val
	}
	if val := getEnvDuration("REDIS_WRITE_TIMEOUT"); val != 0 {
		cfg.Redis.WriteTimeout = val
	}
}

func applyPipelineEnv(cfg *Config) {
	if val := getEnvInt("PIPELINE_QUEUE_SIZE"); val != 0 {
		cfg.Pipeline.QueueSize = val
	}
	if val := getEnvInt("PIPELINE_WORKERS"); val != 0 {
		cfg.Pipeline.Workers = val
	}
	if val := getEnvInt("PIPELINE_BATCH_SIZE"); val != 0 {
		cfg.Pipeline.BatchSize = val
	}
	if val := getEnvDuration("PIPELINE_ADD_TIMEOUT"); val != 0 {
		cfg.Pipeline.AddTimeout = val
	}
	if val := getEnvDuration("PIPELINE_MAX_SEND_DELAY"); val != 0 {
		cfg.Pipeline.MaxSendDelay = val
	}
}

func applyBreakerEnv(cfg *Config) {
	if val := getEnvFloat("BREAKER_ERROR_THRESHOLD"); val != 0 {
		cfg.Breaker.ErrorThreshold = val
	}
	if val := getEnvInt("BREAKER_SUCCESS_THRESHOLD"); val > 0 {
		cfg.Breaker.SuccessThreshold = uint64(val)
	}
	if val := getEnvDuration("BREAKER_OPEN_TIMEOUT"); val != 0 {
		cfg.Breaker.OpenTimeout = val
	}
	if val := getEnvInt("BREAKER_VOLUME_THRESHOLD"); val > 0 {
		cfg.Breaker.VolumeThreshold = uint64(val)
	}
}

// --- env parsing helpers ---

func getEnvDuration(key string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0
	}
	return d
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

func getEnvInt64(key string) int64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func getEnvFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return f
}

func getEnvBool(key string) *bool {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &b
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntList(val string) []int {
	parts := strings.Split(val, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
