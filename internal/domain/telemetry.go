package domain

import (
	"sync/atomic"
	"time"
)

// kindCounters holds the monotonic accounting for one event family.
type kindCounters struct {
	Accepted  atomic.Uint64
	Completed atomic.Uint64
	Rejected  atomic.Uint64
}

// Telemetry holds atomic per-kind pipeline counters.
//
// For every kind, accepted − completed − rejected equals the number of
// items that have entered the queue and not yet left worker processing.
type Telemetry struct {
	kinds [kindCount]kindCounters

	// Uplink metrics
	BatchesPublished atomic.Uint64
	PublishErrors    atomic.Uint64
	PayloadsParked   atomic.Uint64
	PayloadsDropped  atomic.Uint64

	// Start time for rate calculations
	StartTime time.Time
}

// NewTelemetry creates a new telemetry instance.
func NewTelemetry() *Telemetry {
	return &Telemetry{StartTime: time.Now()}
}

// Accept records an item admitted to the queue for kind k.
func (t *Telemetry) Accept(k Kind) {
	t.kinds[k].Accepted.Add(1)
}

// Reject converts a prior Accept into a rejection after the queue refused
// the item.
func (t *Telemetry) Reject(k Kind) {
	t.kinds[k].Rejected.Add(1)
}

// Complete records n items of kind k leaving worker processing, whether or
// not the handler succeeded downstream.
func (t *Telemetry) Complete(k Kind, n int) {
	if n <= 0 {
		return
	}
	t.kinds[k].Completed.Add(uint64(n))
}

// Accepted returns the monotonic accept count for kind k.
func (t *Telemetry) Accepted(k Kind) uint64 {
	return t.kinds[k].Accepted.Load()
}

// Completed returns the monotonic completion count for kind k.
func (t *Telemetry) Completed(k Kind) uint64 {
	return t.kinds[k].Completed.Load()
}

// Rejected returns the monotonic rejection count for kind k.
func (t *Telemetry) Rejected(k Kind) uint64 {
	return t.kinds[k].Rejected.Load()
}

// InFlight derives the current in-flight count for kind k. The counters
// are sampled independently, so a concurrent reader may observe a
// transiently stale value; it is never negative for quiescent pipelines.
func (t *Telemetry) InFlight(k Kind) int64 {
	c := &t.kinds[k]
	accepted := int64(c.Accepted.Load())
	done := int64(c.Completed.Load()) + int64(c.Rejected.Load())
	if done > accepted {
		return 0
	}
	return accepted - done
}

// TotalInFlight sums the in-flight counts across all kinds.
func (t *Telemetry) TotalInFlight() int64 {
	var total int64
	for k := Kind(0); k < kindCount; k++ {
		total += t.InFlight(k)
	}
	return total
}

// AcceptRate returns accepted events per second across all kinds.
func (t *Telemetry) AcceptRate() float64 {
	elapsed := time.Since(t.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	var total uint64
	for k := Kind(0); k < kindCount; k++ {
		total += t.kinds[k].Accepted.Load()
	}
	return float64(total) / elapsed
}

// KindSnapshot is a point-in-time view of one family's counters.
type KindSnapshot struct {
	Kind      string
	Accepted  uint64
	Completed uint64
	Rejected  uint64
	InFlight  int64
}

// TelemetrySnapshot represents a point-in-time telemetry snapshot.
type TelemetrySnapshot struct {
	Timestamp        time.Time
	Kinds            []KindSnapshot
	BatchesPublished uint64
	PublishErrors    uint64
	PayloadsParked   uint64
	PayloadsDropped  uint64
	AcceptRate       float64
}

// Snapshot creates a point-in-time snapshot of all counters.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	s := TelemetrySnapshot{
		Timestamp:        time.Now(),
		Kinds:            make([]KindSnapshot, 0, int(kindCount)),
		BatchesPublished: t.BatchesPublished.Load(),
		PublishErrors:    t.PublishErrors.Load(),
		PayloadsParked:   t.PayloadsParked.Load(),
		PayloadsDropped:  t.PayloadsDropped.Load(),
		AcceptRate:       t.AcceptRate(),
	}
	for k := Kind(0); k < kindCount; k++ {
		s.Kinds = append(s.Kinds, KindSnapshot{
			Kind:      k.String(),
			Accepted:  t.Accepted(k),
			Completed: t.Completed(k),
			Rejected:  t.Rejected(k),
			InFlight:  t.InFlight(k),
		})
	}
	return s
}
