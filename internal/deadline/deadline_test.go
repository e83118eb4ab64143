package deadline

import (
	"testing"
	"time"
)

func TestRemainingNonIncreasing(t *testing.T) {
	d := In(100 * time.Millisecond)

	prev := d.Remaining()
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		cur := d.Remaining()
		if cur > prev {
			t.Fatalf("remaining increased: prev=%v cur=%v", prev, cur)
		}
		prev = cur
	}
}

func TestExpiryLatches(t *testing.T) {
	d := In(10 * time.Millisecond)

	if d.HasExpired() {
		t.Fatalf("expired immediately")
	}

	time.Sleep(20 * time.Millisecond)

	if !d.HasExpired() {
		t.Fatalf("not expired after sleep")
	}
	// Latch is one-way.
	for i := 0; i < 3; i++ {
		if r := d.Remaining(); r != 0 {
			t.Fatalf("remaining after expiry = %v, want 0", r)
		}
	}
}

func TestZeroDurationExpiresImmediately(t *testing.T) {
	d := In(0)
	if r := d.Remaining(); r != 0 {
		t.Fatalf("remaining = %v, want 0", r)
	}
	if !d.HasExpired() {
		t.Fatalf("zero deadline did not expire")
	}
}

func TestNegativeDurationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for negative duration")
		}
	}()
	In(-1 * time.Second)
}

func TestRunIfNotExpired(t *testing.T) {
	d := In(time.Second)

	ran := false
	d.RunIfNotExpired(func(remaining time.Duration) {
		ran = true
		if remaining <= 0 || remaining > time.Second {
			t.Fatalf("bad remainder %v", remaining)
		}
	})
	if !ran {
		t.Fatalf("action not invoked on live deadline")
	}

	expired := In(0)
	expired.RunIfNotExpired(func(time.Duration) {
		t.Fatalf("action invoked on expired deadline")
	})
}

func TestApplyIfNotExpired(t *testing.T) {
	d := In(time.Second)

	v, ok := ApplyIfNotExpired(d, func(remaining time.Duration) int {
		return int(remaining.Milliseconds())
	})
	if !ok || v <= 0 {
		t.Fatalf("apply on live deadline: v=%d ok=%v", v, ok)
	}

	v, ok = ApplyIfNotExpired(In(0), func(time.Duration) int { return 42 })
	if ok || v != 0 {
		t.Fatalf("apply on expired deadline: v=%d ok=%v", v, ok)
	}
}
