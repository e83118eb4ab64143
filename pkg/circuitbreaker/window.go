package circuitbreaker

import (
	"sync"
	"time"
)

// windowCounts holds the aggregated counts for the current window.
type windowCounts struct {
	requests             uint64
	successes            uint64
	failures             uint64
	consecutiveSuccesses uint64
	consecutiveFailures  uint64
}

// bucket is one time slice of the sliding window.
type bucket struct {
	requests  uint64
	successes uint64
	failures  uint64
}

// window tracks error-rate statistics over a rotating set of time buckets.
// All access goes through the mutex; the breaker's hot path is the guarded
// network call, not the accounting.
type window struct {
	mu           sync.Mutex
	buckets      []bucket
	bucketTime   int64 // nanoseconds per bucket
	lastRotation int64 // unix nano

	consecutiveSuccesses uint64
	consecutiveFailures  uint64
}

func newWindow(size int, duration time.Duration) *window {
	if size <= 0 {
		size = 10
	}
	return &window{
		buckets:      make([]bucket, size),
		bucketTime:   int64(duration) / int64(size),
		lastRotation: time.Now().UnixNano(),
	}
}

func (w *window) success() {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.currentLocked()
	b.requests++
	b.successes++
	w.consecutiveSuccesses++
	w.consecutiveFailures = 0
}

func (w *window) failure() {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.currentLocked()
	b.requests++
	b.failures++
	w.consecutiveFailures++
	w.consecutiveSuccesses = 0
}

func (w *window) sum() windowCounts {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotateLocked(time.Now().UnixNano())
	counts := windowCounts{
		consecutiveSuccesses: w.consecutiveSuccesses,
		consecutiveFailures:  w.consecutiveFailures,
	}
	for i := range w.buckets {
		counts.requests += w.buckets[i].requests
		counts.successes += w.buckets[i].successes
		counts.failures += w.buckets[i].failures
	}
	return counts
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRotation = time.Now().UnixNano()
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
	w.consecutiveSuccesses = 0
	w.consecutiveFailures = 0
}

func (w *window) currentLocked() *bucket {
	now := time.Now().UnixNano()
	w.rotateLocked(now)
	idx := int((now / w.bucketTime) % int64(len(w.buckets)))
	return &w.buckets[idx]
}

// rotateLocked clears buckets that fell out of the window since the last
// rotation.
func (w *window) rotateLocked(now int64) {
	elapsed := now - w.lastRotation
	if elapsed < w.bucketTime {
		return
	}

	numExpired := elapsed / w.bucketTime
	size := int64(len(w.buckets))
	if numExpired >= size {
		for i := range w.buckets {
			w.buckets[i] = bucket{}
		}
		w.lastRotation = now
		return
	}

	startIdx := (w.lastRotation / w.bucketTime) % size
	for i := int64(1); i <= numExpired; i++ {
		w.buckets[(startIdx+i)%size] = bucket{}
	}
	w.lastRotation = now
}
