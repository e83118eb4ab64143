// Package agent composes the per-family event services, the submitter,
// and the uplink into the embeddable forwarding client.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/deadline"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/domain"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/events"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/submit"
	"github.com/ibs-source/telemetry/forwarder/golang/pkg/circuitbreaker"
	"github.com/ibs-source/telemetry/forwarder/golang/pkg/hmacpool"
)

// families lists the event kinds the agent carries. VM lifecycle notices
// must arrive in order downstream, so that family runs a single worker.
var families = []struct {
	kind    domain.Kind
	ordered bool
}{
	{domain.KindVM, true},
	{domain.KindConnection, false},
	{domain.KindModuleLoad, false},
	{domain.KindLog, false},
}

// Agent is the in-process telemetry forwarding client.
type Agent struct {
	id        string
	cfg       *config.Config
	logger    ports.Logger
	telemetry *domain.Telemetry
	uplink    ports.Uplink
	submitter *submit.Submitter
	services  map[domain.Kind]*events.Service
}

// New wires the agent from configuration and an uplink implementation.
func New(cfg *config.Config, uplink ports.Uplink, logger ports.Logger) (*Agent, error) {
	a := &Agent{
		id:        uuid.NewString(),
		cfg:       cfg,
		logger:    logger.WithFields(ports.Field{Key: "component", Value: "agent"}),
		telemetry: domain.NewTelemetry(),
		uplink:    uplink,
		services:  make(map[domain.Kind]*events.Service, len(families)),
	}

	var signer *hmacpool.Pool
	if cfg.Uplink.SigningKey != "" {
		var err error
		signer, err = hmacpool.New([]byte(cfg.Uplink.SigningKey), cfg.Uplink.SigningPoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build signing pool: %w", err)
		}
	}

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:             "uplink-publish",
		ErrorThreshold:   cfg.Breaker.ErrorThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.OpenTimeout,
		VolumeThreshold:  cfg.Breaker.VolumeThreshold,
	})

	submitter, err := submit.New(submit.Options{
		AgentID:        a.id,
		Signer:         signer,
		PublishTimeout: cfg.Uplink.PublishTimeout,
		RetryAttempts:  cfg.Uplink.RetryMaxAttempts,
		RetryBackoff:   cfg.Uplink.RetryBackoff,
		ParkCapacity:   uint32(cfg.Uplink.ParkCapacity), // #nosec G115 -- validated power of two
	}, uplink, breaker, a.telemetry, logger)
	if err != nil {
		return nil, err
	}
	a.submitter = submitter

	for _, fam := range families {
		svc, err := events.NewService(events.Options{
			Kind:         fam.kind,
			MaxQueueSize: cfg.Pipeline.QueueSize,
			MaxWorkers:   cfg.Pipeline.Workers,
			MaxBatchSize: cfg.Pipeline.BatchSize,
			AddTimeout:   cfg.Pipeline.AddTimeout,
			MaxSendDelay: cfg.Pipeline.MaxSendDelay,
			Ordered:      fam.ordered,
		}, submitter.HandleBatch, a.telemetry, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s service: %w", fam.kind, err)
		}
		a.services[fam.kind] = svc
	}

	// Workers stay gated until the uplink reports a usable connection;
	// producers buffer in the meantime. Reconnects also flush parked
	// payloads.
	uplink.OnConnectionUp(a.onConnectionUp)

	return a, nil
}

// ID returns the agent instance identifier stamped on every envelope.
func (a *Agent) ID() string {
	return a.id
}

// Telemetry exposes the per-kind counters.
func (a *Agent) Telemetry() *domain.Telemetry {
	return a.telemetry
}

// Start connects the uplink. Event admission works before this; batches
// only start moving once the connection is up.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting agent", ports.Field{Key: "agent_id", Value: a.id})
	if err := a.uplink.Connect(ctx); err != nil {
		return fmt.Errorf("uplink connect failed: %w", err)
	}
	return nil
}

func (a *Agent) onConnectionUp() {
	a.logger.Info("Uplink connection established")
	for _, svc := range a.services {
		svc.ConnectionEstablished()
	}
	a.submitter.Resend()
}

// Enqueue routes one event to its family service.
func (a *Agent) Enqueue(ev domain.Event) bool {
	svc, ok := a.services[ev.Kind]
	if !ok {
		a.logger.Warn("Dropping event of unknown kind",
			ports.Field{Key: "kind", Value: int32(ev.Kind)},
		)
		return false
	}
	return svc.Add(ev)
}

// Sync asks every family to flush its buffered events.
func (a *Agent) Sync() {
	for _, svc := range a.services {
		svc.Sync()
	}
}

// Stop drains all services within the shared deadline, then disconnects
// the uplink with whatever budget is left.
func (a *Agent) Stop(d *deadline.Deadline) error {
	if d == nil {
		return fmt.Errorf("stop deadline must not be nil")
	}
	a.logger.Info("Stopping agent",
		ports.Field{Key: "budget", Value: d.Remaining()},
	)

	var firstErr error
	for _, fam := range families {
		if err := a.services[fam.kind].Stop(d); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	wait := a.cfg.Uplink.DisconnectTimeout
	if r := d.Remaining(); r < wait {
		wait = r
	}
	a.uplink.Disconnect(wait)

	a.logger.Info("Agent stopped")
	return firstErr
}

// Cancel stops everything without a drain budget.
func (a *Agent) Cancel() {
	for _, fam := range families {
		a.services[fam.kind].Cancel()
	}
	a.uplink.Disconnect(0)
}

// Pending sums the buffered entries across all families.
func (a *Agent) Pending() int {
	total := 0
	for _, svc := range a.services {
		total += svc.Pending()
	}
	return total
}

// WaitIdle polls until every family has drained, including batches still
// inside a handler, or the timeout passes. Intended for embedders that
// want a quiet point before snapshotting.
func (a *Agent) WaitIdle(timeout time.Duration) bool {
	idle := func() bool {
		return a.Pending() == 0 && a.telemetry.TotalInFlight() == 0
	}
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		if idle() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return idle()
}
