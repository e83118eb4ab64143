package config

import "fmt"

// Validate checks the loaded configuration for inconsistencies.
func Validate(cfg *Config) error {
	if err := validateUplink(&cfg.Uplink); err != nil {
		return err
	}
	if err := validateBackend(cfg); err != nil {
		return err
	}
	return validatePipeline(&cfg.Pipeline)
}

func validateUplink(u *UplinkConfig) error {
	if u.Backend != BackendMQTT && u.Backend != BackendRedis {
		return fmt.Errorf("uplink backend must be %q or %q, got %q", BackendMQTT, BackendRedis, u.Backend)
	}
	if u.SigningPoolSize < 1 {
		return fmt.Errorf("uplink signing pool size must be >= 1, got %d", u.SigningPoolSize)
	}
	if u.RetryMaxAttempts < 1 {
		return fmt.Errorf("uplink retry max attempts must be >= 1, got %d", u.RetryMaxAttempts)
	}
	if u.ParkCapacity < 1 || u.ParkCapacity&(u.ParkCapacity-1) != 0 {
		return fmt.Errorf("uplink park capacity must be a power of two, got %d", u.ParkCapacity)
	}
	return nil
}

func validateBackend(cfg *Config) error {
	switch cfg.Uplink.Backend {
	case BackendMQTT:
		if len(cfg.MQTT.Brokers) == 0 {
			return fmt.Errorf("at least one MQTT broker is required")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("MQTT topic must not be empty")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("MQTT QoS must be 0..2, got %d", cfg.MQTT.QoS)
		}
	case BackendRedis:
		if len(cfg.Redis.Addresses) == 0 {
			return fmt.Errorf("at least one Redis address is required")
		}
		if cfg.Redis.Stream == "" {
			return fmt.Errorf("Redis stream name must not be empty")
		}
	}
	return nil
}

func validatePipeline(p *PipelineConfig) error {
	if p.QueueSize < 1 {
		return fmt.Errorf("pipeline queue size must be >= 1, got %d", p.QueueSize)
	}
	if p.Workers < 1 {
		return fmt.Errorf("pipeline workers must be >= 1, got %d", p.Workers)
	}
	if p.BatchSize < 1 {
		return fmt.Errorf("pipeline batch size must be >= 1, got %d", p.BatchSize)
	}
	if p.BatchSize > p.QueueSize {
		return fmt.Errorf("pipeline batch size %d exceeds queue size %d", p.BatchSize, p.QueueSize)
	}
	if p.MaxSendDelay <= 0 {
		return fmt.Errorf("pipeline max send delay must be positive, got %v", p.MaxSendDelay)
	}
	return nil
}
