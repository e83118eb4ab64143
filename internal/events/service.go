// Package events provides the per-family event services that sit between
// runtime producers and the batching queue, keeping the per-kind
// accounting honest.
package events

import (
	"sync/atomic"
	"time"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/batching"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/deadline"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/domain"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

// Options configures one event-family service.
type Options struct {
	Kind         domain.Kind
	MaxQueueSize int
	MaxWorkers   int
	MaxBatchSize int
	AddTimeout   time.Duration
	MaxSendDelay time.Duration
	// Ordered forces a single worker so the receiver observes admission
	// order. Overrides MaxWorkers.
	Ordered bool
}

// Service adapts one event family onto a batching queue: it tracks the
// per-kind in-flight accounting and gates worker startup on the uplink's
// connection-established signal.
type Service struct {
	kind    domain.Kind
	queue   *batching.Queue[domain.Event]
	tel     *domain.Telemetry
	log     ports.Logger
	started atomic.Bool
}

// NewService builds the service and its queue. Workers do not start until
// ConnectionEstablished; Add buffers in the meantime.
func NewService(
	opts Options,
	handler batching.Handler[domain.Event],
	tel *domain.Telemetry,
	logger ports.Logger,
) (*Service, error) {
	s := &Service{
		kind: opts.Kind,
		tel:  tel,
		log:  logger.WithFields(ports.Field{Key: "service", Value: opts.Kind.String()}),
	}

	workers := opts.MaxWorkers
	if opts.Ordered {
		workers = 1
	}

	q, err := batching.New(batching.Config[domain.Event]{
		Name:         opts.Kind.String(),
		MaxQueueSize: opts.MaxQueueSize,
		MaxWorkers:   workers,
		MaxBatchSize: opts.MaxBatchSize,
		AddTimeout:   opts.AddTimeout,
		MaxSendDelay: opts.MaxSendDelay,
		ProcessBatch: s.wrapHandler(handler),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	s.queue = q
	return s, nil
}

// wrapHandler interposes the completion accounting. The decrement runs in
// a defer so it is guaranteed whether the handler returns or panics (the
// queue recovers the panic above this frame).
func (s *Service) wrapHandler(handler batching.Handler[domain.Event]) batching.Handler[domain.Event] {
	return func(workerID string, batch []domain.Event) {
		defer s.tel.Complete(s.kind, len(batch))
		handler(workerID, batch)
	}
}

// Kind returns the event family this service carries.
func (s *Service) Kind() domain.Kind {
	return s.kind
}

// Add offers one event to the pipeline. Accounting: accepted is counted
// up front and converted to a rejection when the queue refuses.
func (s *Service) Add(ev domain.Event) bool {
	s.tel.Accept(s.kind)
	if !s.queue.Add(ev) {
		s.tel.Reject(s.kind)
		return false
	}
	return true
}

// AddAll offers a slice of events and returns how many were accepted.
func (s *Service) AddAll(evs []domain.Event) int {
	accepted := 0
	for _, ev := range evs {
		if s.Add(ev) {
			accepted++
		}
	}
	return accepted
}

// ConnectionEstablished releases the workers. Safe to call more than once;
// only the first call starts the queue.
func (s *Service) ConnectionEstablished() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	if err := s.queue.Start(); err != nil {
		s.log.Error("Failed to start queue workers", ports.Field{Key: "error", Value: err})
	}
}

// Sync asks the workers to flush everything currently buffered.
func (s *Service) Sync() {
	s.queue.Sync()
}

// Stop drains the service within the deadline.
func (s *Service) Stop(d *deadline.Deadline) error {
	return s.queue.Stop(d)
}

// Cancel stops the service without a drain budget.
func (s *Service) Cancel() {
	s.queue.Cancel()
}

// Pending returns the number of entries currently buffered in the queue.
func (s *Service) Pending() int {
	return s.queue.Len()
}
