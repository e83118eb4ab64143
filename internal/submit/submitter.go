// Package submit implements the batch handler handed to the event
// services: encode a batch envelope, sign it, and publish it through the
// uplink with bounded retries. Failed payloads are parked and re-sent the
// next time the uplink comes up.
package submit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/deadline"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/domain"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
	"github.com/ibs-source/telemetry/forwarder/golang/pkg/hmacpool"
	"github.com/ibs-source/telemetry/forwarder/golang/pkg/jsonenc"
	"github.com/ibs-source/telemetry/forwarder/golang/pkg/ringbuffer"
)

// Options configures a Submitter.
type Options struct {
	AgentID string
	// Signer is optional; without it payloads go out unsigned.
	Signer *hmacpool.Pool
	// PublishTimeout bounds one whole delivery attempt sequence.
	PublishTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	// ParkCapacity is the size of the failed-payload ring (power of two).
	ParkCapacity uint32
}

// Submitter is the processBatch implementation of the forwarding
// pipeline. Retries never escape a HandleBatch call; the queue above
// treats every handed-off batch as consumed.
type Submitter struct {
	opts    Options
	uplink  ports.Uplink
	breaker ports.CircuitBreaker
	tel     *domain.Telemetry
	log     ports.Logger

	parked   *ringbuffer.RingBuffer[[]byte]
	builders sync.Pool
}

// New creates a submitter publishing through uplink guarded by breaker.
func New(
	opts Options,
	uplink ports.Uplink,
	breaker ports.CircuitBreaker,
	tel *domain.Telemetry,
	logger ports.Logger,
) (*Submitter, error) {
	if uplink == nil {
		return nil, errors.New("submit: uplink must not be nil")
	}
	if breaker == nil {
		return nil, errors.New("submit: breaker must not be nil")
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.ParkCapacity == 0 {
		opts.ParkCapacity = 256
	}

	return &Submitter{
		opts:    opts,
		uplink:  uplink,
		breaker: breaker,
		tel:     tel,
		log:     logger.WithFields(ports.Field{Key: "component", Value: "submitter"}),
		parked:  ringbuffer.New[[]byte](opts.ParkCapacity),
		builders: sync.Pool{
			New: func() interface{} { return jsonenc.New(4096) },
		},
	}, nil
}

// HandleBatch encodes and delivers one batch. Matches batching.Handler.
func (s *Submitter) HandleBatch(workerID string, batch []domain.Event) {
	if len(batch) == 0 {
		return
	}

	payload := s.encode(workerID, batch)
	if err := s.deliver(payload); err != nil {
		s.tel.PublishErrors.Add(1)
		s.park(payload)
		return
	}
	s.tel.BatchesPublished.Add(1)
}

// Resend drains the parked ring back through the uplink. Called when the
// connection re-establishes; stops at the first failure and re-parks.
func (s *Submitter) Resend() {
	for {
		payload := s.parked.Get()
		if payload == nil {
			return
		}
		if err := s.deliver(*payload); err != nil {
			s.tel.PublishErrors.Add(1)
			s.park(*payload)
			return
		}
		s.tel.BatchesPublished.Add(1)
	}
}

// Parked returns the number of payloads waiting for a resend.
func (s *Submitter) Parked() int {
	return s.parked.Size()
}

// encode builds the signed batch envelope. The returned slice is a copy,
// detached from the pooled builder.
func (s *Submitter) encode(workerID string, batch []domain.Event) []byte {
	b := s.builders.Get().(*jsonenc.Builder)
	defer func() {
		b.Reset()
		s.builders.Put(b)
	}()
	b.Reset()

	b.BeginObject()
	b.String("id", uuid.NewString())
	b.String("agent", s.opts.AgentID)
	b.String("worker", workerID)
	b.Time("at", time.Now())
	b.Int("count", int64(len(batch)))
	b.BeginArray("events")
	for i := range batch {
		ev := &batch[i]
		b.BeginArrayObject()
		b.String("id", ev.ID)
		b.String("kind", ev.Kind.String())
		b.Time("at", ev.At)
		if len(ev.Fields) > 0 {
			b.StringMap("fields", ev.Fields)
		}
		b.EndObject()
	}
	b.EndArray()

	if s.opts.Signer != nil {
		b.String("signature", s.opts.Signer.Sum(b.Bytes()))
	}
	b.EndObject()

	out := make([]byte, len(b.Bytes()))
	copy(out, b.Bytes())
	return out
}

// deliver publishes with bounded retries inside the per-batch budget.
func (s *Submitter) deliver(payload []byte) error {
	d := deadline.In(s.opts.PublishTimeout)

	var lastErr error
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		remaining := d.Remaining()
		if remaining <= 0 {
			break
		}

		lastErr = s.breaker.Execute(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), remaining)
			defer cancel()
			return s.uplink.Publish(ctx, payload)
		})
		if lastErr == nil {
			return nil
		}

		s.log.Debug("Publish attempt failed",
			ports.Field{Key: "attempt", Value: attempt},
			ports.Field{Key: "error", Value: lastErr},
		)
		s.backoff(attempt, d)
	}
	if lastErr == nil {
		lastErr = errors.New("publish budget exhausted")
	}
	return lastErr
}

// backoff sleeps between attempts, clipped to the remaining budget.
func (s *Submitter) backoff(attempt int, d *deadline.Deadline) {
	wait := s.opts.RetryBackoff * time.Duration(attempt)
	if r := d.Remaining(); wait > r {
		wait = r
	}
	if wait > 0 {
		time.Sleep(wait)
	}
}

// park stores a payload for the next Resend, dropping it when the ring
// is full.
func (s *Submitter) park(payload []byte) {
	if s.parked.Put(&payload) {
		s.tel.PayloadsParked.Add(1)
		return
	}
	s.tel.PayloadsDropped.Add(1)
	s.log.Warn("Park buffer full, dropping payload",
		ports.Field{Key: "payload_bytes", Value: len(payload)},
	)
}
