// Package main boots the telemetry forwarder, wiring configuration,
// logger, uplink, and the agent, then feeds it NDJSON events from stdin
// until a shutdown signal arrives.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/agent"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/deadline"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/domain"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/logger"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/mqtt"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/redisuplink"
	runtimex "github.com/ibs-source/telemetry/forwarder/golang/internal/runtime"
)

func main() {
	os.Exit(run())
}

// run contains the program logic and returns an exit code so defers run
// before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logr := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)

	if len(cfg.App.CPUAffinity) > 0 {
		if err := runtimex.ApplyProcessAffinity(runtimex.AffinitySpec{CPUSet: cfg.App.CPUAffinity}); err != nil {
			logr.Warn("Failed to apply CPU affinity", logger.Error(err))
		}
	}

	uplink, err := buildUplink(cfg, logr)
	if err != nil {
		logr.Error("failed to build uplink", logger.Error(err))
		return 1
	}

	fwd, err := agent.New(cfg, uplink, logr)
	if err != nil {
		logr.Error("failed to build agent", logger.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Uplink.ConnectTimeout)
	err = fwd.Start(connectCtx)
	connectCancel()
	if err != nil {
		logr.Error("failed to start agent", logger.Error(err))
		return 1
	}

	if cfg.App.LogLevel == "debug" || cfg.App.LogLevel == "trace" {
		go logTelemetry(ctx, fwd, logr)
	}

	// Feed stdin events until EOF or signal.
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		ingest(ctx, fwd, logr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logr.Info("received shutdown signal", logger.Any("signal", sig))
	case <-ingestDone:
		logr.Info("input drained")
	}
	cancel()

	if err := fwd.Stop(deadline.In(cfg.App.ShutdownTimeout)); err != nil {
		logr.Error("failed to stop gracefully", logger.Error(err))
		return 1
	}

	logr.Info("forwarder shutdown complete")
	return 0
}

// buildUplink selects the transport backend from configuration.
func buildUplink(cfg *config.Config, logr ports.Logger) (ports.Uplink, error) {
	switch cfg.Uplink.Backend {
	case config.BackendRedis:
		return redisuplink.NewClient(cfg, logr)
	default:
		return mqtt.NewClient(cfg, logr)
	}
}

// wireEvent is the NDJSON shape the embedding shim writes on stdin.
type wireEvent struct {
	ID     string            `json:"id"`
	Kind   string            `json:"kind"`
	At     time.Time         `json:"at"`
	Fields map[string]string `json:"fields"`
}

// ingest reads NDJSON events and routes them into the agent.
func ingest(ctx context.Context, fwd *agent.Agent, logr ports.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(line, &we); err != nil {
			logr.Warn("Skipping malformed event line", logger.Error(err))
			continue
		}
		kind, ok := domain.KindFromString(we.Kind)
		if !ok {
			logr.Warn("Skipping event of unknown kind", logger.String("kind", we.Kind))
			continue
		}
		if we.ID == "" {
			we.ID = uuid.NewString()
		}
		if we.At.IsZero() {
			we.At = time.Now()
		}

		fwd.Enqueue(domain.Event{ID: we.ID, Kind: kind, At: we.At, Fields: we.Fields})
	}
	if err := scanner.Err(); err != nil {
		logr.Error("stdin read failed", logger.Error(err))
	}
}

// logTelemetry periodically logs a counter snapshot.
func logTelemetry(ctx context.Context, fwd *agent.Agent, logr ports.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := fwd.Telemetry().Snapshot()
			logr.Debug("telemetry snapshot",
				logger.Any("batches_published", snap.BatchesPublished),
				logger.Any("publish_errors", snap.PublishErrors),
				logger.Any("parked", snap.PayloadsParked),
				logger.Any("accept_rate", snap.AcceptRate),
			)
			for _, k := range snap.Kinds {
				logr.Debug("kind counters",
					logger.String("kind", k.Kind),
					logger.Any("accepted", k.Accepted),
					logger.Any("completed", k.Completed),
					logger.Any("rejected", k.Rejected),
					logger.Any("in_flight", k.InFlight),
				)
			}
		}
	}
}
