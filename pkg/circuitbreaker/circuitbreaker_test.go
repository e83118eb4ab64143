package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func testSettings() Settings {
	return Settings{
		Name:             "test",
		ErrorThreshold:   50,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		VolumeThreshold:  4,
	}
}

var errBoom = errors.New("boom")

func TestStaysClosedUnderVolume(t *testing.T) {
	cb := New(testSettings())

	// Below the volume threshold even 100% failures keep the circuit closed.
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	if cb.GetState() != "closed" {
		t.Fatalf("state = %s, want closed", cb.GetState())
	}
}

func TestOpensOnErrorRate(t *testing.T) {
	cb := New(testSettings())

	for i := 0; i < 6; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	if cb.GetState() != "open" {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrOpenState) {
		t.Fatalf("open circuit admitted a call: %v", err)
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New(testSettings())

	for i := 0; i < 6; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	if cb.GetState() != "open" {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	time.Sleep(60 * time.Millisecond)

	// Two consecutive successes in half-open close the circuit.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("half-open probe %d failed: %v", i, err)
		}
	}
	if cb.GetState() != "closed" {
		t.Fatalf("state = %s, want closed", cb.GetState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testSettings())

	for i := 0; i < 6; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != "open" {
		t.Fatalf("state = %s, want open after half-open failure", cb.GetState())
	}
}

func TestPanicCountsAsFailure(t *testing.T) {
	cb := New(testSettings())

	err := cb.Execute(func() error { panic("transport wedged") })
	if err == nil {
		t.Fatalf("panic not converted to error")
	}
	stats := cb.GetStats()
	if stats.TotalFailure != 1 {
		t.Fatalf("failures = %d, want 1", stats.TotalFailure)
	}
}

func TestNilFunction(t *testing.T) {
	cb := New(testSettings())
	if err := cb.Execute(nil); err == nil {
		t.Fatalf("nil function accepted")
	}
}

func TestConcurrentExecute(t *testing.T) {
	cb := New(Settings{
		Name:             "concurrent",
		ErrorThreshold:   101, // never opens
		SuccessThreshold: 1,
		Timeout:          time.Second,
		VolumeThreshold:  1,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = cb.Execute(func() error { return nil })
			}
		}()
	}
	wg.Wait()

	stats := cb.GetStats()
	if stats.TotalSuccess != 1600 {
		t.Fatalf("successes = %d, want 1600", stats.TotalSuccess)
	}
}
