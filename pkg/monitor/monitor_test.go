package monitor_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassmon/hassmon-go/internal/hubtest"
	"github.com/hassmon/hassmon-go/pkg/convert"
	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/monitor"
)

const testTimeout = 5 * time.Second

// fastBackoff keeps reconnect tests snappy.
var fastBackoff = monitor.BackoffConfig{
	Initial: 10 * time.Millisecond,
	Max:     50 * time.Millisecond,
	Jitter:  0,
}

func newMonitor(t *testing.T, hub *hubtest.Hub, entities map[string]convert.DataType, cb monitor.Callback) *monitor.Monitor {
	t.Helper()

	m, err := monitor.New(monitor.Config{
		URL:      hub.URL(),
		Token:    hubtest.DefaultToken,
		Entities: entities,
		Callback: cb,
		Backoff:  fastBackoff,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Stop(testTimeout) })
	return m
}

func TestConfigValidate(t *testing.T) {
	valid := monitor.Config{
		URL:      "ws://hub.local:8123",
		Token:    "tok",
		Entities: map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		Callback: func(model.StateChangeEvent) {},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*monitor.Config)
	}{
		{"missing URL", func(c *monitor.Config) { c.URL = "" }},
		{"bad URL scheme", func(c *monitor.Config) { c.URL = "ftp://hub.local" }},
		{"missing token", func(c *monitor.Config) { c.Token = "" }},
		{"no entities", func(c *monitor.Config) { c.Entities = nil }},
		{"missing callback", func(c *monitor.Config) { c.Callback = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLifecycle(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	events := make(chan model.StateChangeEvent, 4)
	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.temperature": convert.TypeNumeric},
		func(ev model.StateChangeEvent) { events <- ev })

	assert.Equal(t, monitor.StateIdle, m.State())
	require.NoError(t, m.Start())
	assert.Equal(t, monitor.StateRunning, m.State())
	assert.ErrorIs(t, m.Start(), monitor.ErrAlreadyRunning)

	conn, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn.AwaitSubscription("sensor.temperature", testTimeout))

	from := &model.EntityState{EntityID: "sensor.temperature", State: "20.1"}
	to := &model.EntityState{
		EntityID:    "sensor.temperature",
		State:       "21.3",
		Attributes:  map[string]any{"unit_of_measurement": "°C"},
		LastChanged: "2026-08-29T10:15:00+00:00",
	}
	require.NoError(t, conn.PushChange("sensor.temperature", from, to, ""))

	select {
	case ev := <-events:
		assert.Equal(t, "sensor.temperature", ev.EntityID)
		assert.Equal(t, convert.TypeNumeric, ev.DataType)

		f, ok := ev.NewState.Float()
		require.True(t, ok)
		assert.InDelta(t, 21.3, f, 1e-9)
		f, ok = ev.OldState.Float()
		require.True(t, ok)
		assert.InDelta(t, 20.1, f, 1e-9)

		assert.Equal(t, "21.3", ev.NewStateRaw)
		assert.Equal(t, "°C", ev.NewAttributes["unit_of_measurement"])
		assert.False(t, ev.LastChanged.IsZero())
	case <-time.After(testTimeout):
		t.Fatal("no event dispatched")
	}

	require.NoError(t, m.Stop(testTimeout))
	assert.Equal(t, monitor.StateStopped, m.State())
	assert.ErrorIs(t, m.Stop(testTimeout), monitor.ErrNotRunning)
	assert.Equal(t, uint64(1), m.Stats().Dispatched)
}

func TestReconnectAndResubscribe(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	events := make(chan model.StateChangeEvent, 4)
	m := newMonitor(t, hub,
		map[string]convert.DataType{"binary_sensor.door": convert.TypeBoolean},
		func(ev model.StateChangeEvent) { events <- ev })
	require.NoError(t, m.Start())

	conn1, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn1.AwaitSubscription("binary_sensor.door", testTimeout))

	// Sever the connection; the monitor must come back and subscribe
	// again on a fresh session.
	conn1.Drop()

	conn2, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn2.AwaitSubscription("binary_sensor.door", testTimeout))

	to := &model.EntityState{EntityID: "binary_sensor.door", State: "on"}
	require.NoError(t, conn2.PushChange("binary_sensor.door", nil, to, ""))

	select {
	case ev := <-events:
		b, ok := ev.NewState.Bool()
		require.True(t, ok)
		assert.True(t, b)
	case <-time.After(testTimeout):
		t.Fatal("no event after reconnect")
	}
	assert.GreaterOrEqual(t, m.Stats().Reconnects, uint64(1))
}

func TestAuthFailureKeepsRetrying(t *testing.T) {
	hub := hubtest.New(hubtest.Config{RejectAuth: true})
	defer hub.Close()

	var calls atomic.Uint64
	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		func(model.StateChangeEvent) { calls.Add(1) })
	require.NoError(t, m.Start())

	// Each rejected handshake counts as one failed session.
	require.Eventually(t, func() bool {
		return m.Stats().Reconnects >= 2
	}, testTimeout, 10*time.Millisecond)

	assert.Equal(t, uint64(0), calls.Load())
	assert.Equal(t, monitor.StateRunning, m.State())
	require.NoError(t, m.Stop(testTimeout))
}

func TestCallbackPanicIsolated(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	events := make(chan model.StateChangeEvent, 4)
	var first atomic.Bool
	first.Store(true)
	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeInteger},
		func(ev model.StateChangeEvent) {
			if first.Swap(false) {
				panic("handler bug")
			}
			events <- ev
		})
	require.NoError(t, m.Start())

	conn, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn.AwaitSubscription("sensor.a", testTimeout))

	push := func(state string) {
		to := &model.EntityState{EntityID: "sensor.a", State: state}
		require.NoError(t, conn.PushChange("sensor.a", nil, to, ""))
	}
	push("1") // panics inside the callback
	push("2") // must still arrive

	select {
	case ev := <-events:
		i, ok := ev.NewState.Int()
		require.True(t, ok)
		assert.Equal(t, int64(2), i)
	case <-time.After(testTimeout):
		t.Fatal("read loop died after callback panic")
	}
	assert.Equal(t, uint64(2), m.Stats().Dispatched)
}

func TestConversionFailureDispatchesNull(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	events := make(chan model.StateChangeEvent, 4)
	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		func(ev model.StateChangeEvent) { events <- ev })
	require.NoError(t, m.Start())

	conn, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn.AwaitSubscription("sensor.a", testTimeout))

	to := &model.EntityState{EntityID: "sensor.a", State: "not-a-number"}
	require.NoError(t, conn.PushChange("sensor.a", nil, to, ""))

	select {
	case ev := <-events:
		assert.True(t, ev.NewState.IsNull())
		assert.Equal(t, "not-a-number", ev.NewStateRaw)
	case <-time.After(testTimeout):
		t.Fatal("event with failed conversion not dispatched")
	}
	assert.Equal(t, uint64(1), m.Stats().ConversionFailures)
}

func TestStopUnblocksIdleSession(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		func(model.StateChangeEvent) {})
	require.NoError(t, m.Start())

	conn, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn.AwaitSubscription("sensor.a", testTimeout))

	// No traffic flowing; Stop must still return promptly because it
	// closes the socket under the blocked read.
	start := time.Now()
	require.NoError(t, m.Stop(testTimeout))
	assert.Less(t, time.Since(start), testTimeout/2)
	assert.Equal(t, monitor.StateStopped, m.State())
}

func TestForcedStopThenRestart(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	block := make(chan struct{})
	var calls atomic.Uint64
	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		func(model.StateChangeEvent) {
			calls.Add(1)
			<-block
		})
	require.NoError(t, m.Start())

	conn1, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn1.AwaitSubscription("sensor.a", testTimeout))

	to := &model.EntityState{EntityID: "sensor.a", State: "1"}
	require.NoError(t, conn1.PushChange("sensor.a", nil, to, ""))
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		testTimeout, 10*time.Millisecond)

	// The worker is wedged inside the callback; Stop gives up on it.
	require.ErrorIs(t, m.Stop(50*time.Millisecond), monitor.ErrStopTimeout)
	assert.Equal(t, monitor.StateStopped, m.State())

	require.NoError(t, m.Start())
	conn2, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn2.AwaitSubscription("sensor.a", testTimeout))
	assert.Equal(t, monitor.StateRunning, m.State())

	// Release the abandoned worker. Its exit must not flip the
	// restarted monitor's lifecycle out from under the new worker.
	close(block)
	assert.Never(t, func() bool { return m.State() != monitor.StateRunning },
		300*time.Millisecond, 20*time.Millisecond)

	require.NoError(t, m.Stop(testTimeout))
	assert.Equal(t, monitor.StateStopped, m.State())
}

func TestRestartAfterStop(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	m := newMonitor(t, hub,
		map[string]convert.DataType{"sensor.a": convert.TypeString},
		func(model.StateChangeEvent) {})

	require.NoError(t, m.Start())
	conn, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn.AwaitSubscription("sensor.a", testTimeout))
	require.NoError(t, m.Stop(testTimeout))

	require.NoError(t, m.Start())
	conn2, err := hub.NextConn(testTimeout)
	require.NoError(t, err)
	require.NoError(t, conn2.AwaitSubscription("sensor.a", testTimeout))
	require.NoError(t, m.Stop(testTimeout))
}
