package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/hassmon/hassmon-go/internal/hubtest"
	"github.com/hassmon/hassmon-go/pkg/convert"
	"github.com/hassmon/hassmon-go/pkg/model"
)

// A timed-out Stop abandons its worker. The generation must advance at
// that point so anything the straggler still delivers is discarded by
// the dispatch guard instead of reaching the callback.
func TestStopTimeoutSupersedesWorker(t *testing.T) {
	hub := hubtest.New(hubtest.Config{})
	defer hub.Close()

	block := make(chan struct{})
	m, err := New(Config{
		URL:      hub.URL(),
		Token:    hubtest.DefaultToken,
		Entities: map[string]convert.DataType{"sensor.a": convert.TypeNumeric},
		Callback: func(model.StateChangeEvent) { <-block },
		Backoff: BackoffConfig{
			Initial: 10 * time.Millisecond,
			Max:     50 * time.Millisecond,
			Jitter:  0,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer close(block)

	conn, err := hub.NextConn(5 * time.Second)
	if err != nil {
		t.Fatalf("NextConn: %v", err)
	}
	if err := conn.AwaitSubscription("sensor.a", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	to := &model.EntityState{EntityID: "sensor.a", State: "1"}
	if err := conn.PushChange("sensor.a", nil, to, ""); err != nil {
		t.Fatal(err)
	}

	// Wait until the worker is wedged inside the callback.
	deadline := time.Now().Add(5 * time.Second)
	for m.Stats().Dispatched == 0 {
		if time.Now().After(deadline) {
			t.Fatal("callback never entered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	genBefore := m.gen.Load()
	if err := m.Stop(50 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Stop = %v, want ErrStopTimeout", err)
	}
	if m.gen.Load() == genBefore {
		t.Error("forced stop did not supersede the worker's generation")
	}
}
