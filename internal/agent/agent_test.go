package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/deadline"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/domain"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Trace(string, ...ports.Field)           {}
func (nopLogger) Debug(string, ...ports.Field)           {}
func (nopLogger) Info(string, ...ports.Field)            {}
func (nopLogger) Warn(string, ...ports.Field)            {}
func (nopLogger) Error(string, ...ports.Field)           {}
func (nopLogger) Fatal(string, ...ports.Field)           {}
func (nopLogger) WithFields(...ports.Field) ports.Logger { return nopLogger{} }

// memoryUplink collects published payloads and fires its connection
// callbacks on Connect, like the real backends.
type memoryUplink struct {
	mu       sync.Mutex
	payloads [][]byte
	upFns    []func()
	up       bool
}

func (m *memoryUplink) Connect(context.Context) error {
	m.mu.Lock()
	m.up = true
	fns := m.upFns
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (m *memoryUplink) Disconnect(time.Duration) {
	m.mu.Lock()
	m.up = false
	m.mu.Unlock()
}

func (m *memoryUplink) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

func (m *memoryUplink) OnConnectionUp(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upFns = append(m.upFns, fn)
}

func (m *memoryUplink) Publish(_ context.Context, p []byte) error {
	cp := make([]byte, len(p))
	copy(cp, p)
	m.mu.Lock()
	m.payloads = append(m.payloads, cp)
	m.mu.Unlock()
	return nil
}

func (m *memoryUplink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func (m *memoryUplink) totalEvents(t *testing.T) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, p := range m.payloads {
		var env struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(p, &env))
		total += env.Count
	}
	return total
}

func testConfig() *config.Config {
	cfg := config.GetDefaults()
	cfg.Pipeline.QueueSize = 64
	cfg.Pipeline.BatchSize = 8
	cfg.Pipeline.MaxSendDelay = 20 * time.Millisecond
	cfg.Pipeline.AddTimeout = 10 * time.Millisecond
	cfg.Uplink.SigningKey = "integration-secret"
	return cfg
}

func newTestAgent(t *testing.T) (*Agent, *memoryUplink) {
	t.Helper()
	up := &memoryUplink{}
	a, err := New(testConfig(), up, nopLogger{})
	require.NoError(t, err)
	return a, up
}

func event(kind domain.Kind, id string) domain.Event {
	return domain.Event{ID: id, Kind: kind, At: time.Now()}
}

func TestEventsBufferUntilConnected(t *testing.T) {
	a, up := newTestAgent(t)
	defer a.Cancel()

	require.True(t, a.Enqueue(event(domain.KindVM, "startup")))
	require.True(t, a.Enqueue(event(domain.KindConnection, "conn-1")))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, up.count(), "nothing published before connect")
	assert.Equal(t, 2, a.Pending())

	require.NoError(t, a.Start(context.Background()))
	require.True(t, a.WaitIdle(time.Second))

	assert.Equal(t, 2, up.totalEvents(t))
}

func TestStopDrainsAllFamilies(t *testing.T) {
	a, up := newTestAgent(t)
	require.NoError(t, a.Start(context.Background()))

	kinds := []domain.Kind{
		domain.KindVM, domain.KindConnection, domain.KindModuleLoad, domain.KindLog,
	}
	for i := 0; i < 40; i++ {
		require.True(t, a.Enqueue(event(kinds[i%len(kinds)], "e")))
	}

	require.NoError(t, a.Stop(deadline.In(2*time.Second)))
	assert.Equal(t, 40, up.totalEvents(t))

	assert.False(t, a.Enqueue(event(domain.KindVM, "late")))
	for _, k := range kinds {
		assert.Zero(t, a.Telemetry().InFlight(k), "kind %s", k)
	}
}

func TestSyncFlushesBuffered(t *testing.T) {
	a, up := newTestAgent(t)
	defer a.Cancel()
	require.NoError(t, a.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.True(t, a.Enqueue(event(domain.KindModuleLoad, "jar")))
	}
	a.Sync()

	waitEnd := time.Now().Add(time.Second)
	for up.totalEvents(t) < 3 && time.Now().Before(waitEnd) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 3, up.totalEvents(t))
}

func TestUnknownKindRejected(t *testing.T) {
	a, _ := newTestAgent(t)
	defer a.Cancel()
	assert.False(t, a.Enqueue(domain.Event{ID: "x", Kind: domain.Kind(99)}))
}

func TestEnvelopesAreSigned(t *testing.T) {
	a, up := newTestAgent(t)
	defer a.Cancel()
	require.NoError(t, a.Start(context.Background()))

	require.True(t, a.Enqueue(event(domain.KindConnection, "c")))
	require.True(t, a.WaitIdle(time.Second))

	up.mu.Lock()
	defer up.mu.Unlock()
	require.NotEmpty(t, up.payloads)
	var env struct {
		Agent     string `json:"agent"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(up.payloads[0], &env))
	assert.Equal(t, a.ID(), env.Agent)
	assert.Len(t, env.Signature, 64)
}
