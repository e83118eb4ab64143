package config

import (
	"flag"
	"os"
	"time"
)

// ParseFlags overlays command line flags on top of cfg. Flags win over
// environment variables. Unknown flags are an error.
func ParseFlags(cfg *Config) error {
	return parseFlagSet(cfg, os.Args[1:])
}

func parseFlagSet(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("forwarder", flag.ContinueOnError)

	logLevel := fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "log format (text or json)")
	backend := fs.String("uplink", "", "uplink backend (mqtt or redis)")
	shutdown := fs.Duration("shutdown-timeout", 0, "graceful shutdown budget")
	queueSize := fs.Int("queue-size", 0, "per-family queue capacity")
	workers := fs.Int("workers", 0, "workers per unordered family")
	batchSize := fs.Int("batch-size", 0, "max events per batch")
	sendDelay := fs.Duration("max-send-delay", 0, "max age of a partial batch")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *logLevel != "" {
		cfg.App.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.App.LogFormat = *logFormat
	}
	if *backend != "" {
		cfg.Uplink.Backend = *backend
	}
	if *shutdown != 0 {
		cfg.App.ShutdownTimeout = *shutdown
	}
	if *queueSize != 0 {
		cfg.Pipeline.QueueSize = *queueSize
	}
	if *workers != 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *batchSize != 0 {
		cfg.Pipeline.BatchSize = *batchSize
	}
	if *sendDelay != time.Duration(0) {
		cfg.Pipeline.MaxSendDelay = *sendDelay
	}
	return nil
}
