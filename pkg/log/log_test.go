package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []Event {
	base := time.Date(2024, 2, 14, 10, 30, 0, 0, time.UTC)
	return []Event{
		{
			Timestamp:    base,
			ConnectionID: "conn-1",
			Direction:    DirectionOut,
			Category:     CategoryConnection,
			Conn:         &ConnEvent{NewState: "CONNECTING"},
		},
		{
			Timestamp:    base.Add(time.Second),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Category:     CategoryAuth,
			Auth:         &AuthEvent{Success: true, HAVersion: "2024.2.1"},
		},
		{
			Timestamp:    base.Add(2 * time.Second),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Category:     CategoryChange,
			Change: &ChangeEvent{
				EntityID:       "sensor.temp",
				SubscriptionID: 2,
				OldState:       "20.1",
				NewState:       "21.3",
			},
		},
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	for _, ev := range sampleEvents() {
		data, err := EncodeEvent(ev)
		require.NoError(t, err)

		got, err := DecodeEvent(data)
		require.NoError(t, err)

		assert.Equal(t, ev.ConnectionID, got.ConnectionID)
		assert.Equal(t, ev.Direction, got.Direction)
		assert.Equal(t, ev.Category, got.Category)
		assert.True(t, ev.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", ev.Timestamp, got.Timestamp)
		if ev.Change != nil {
			require.NotNil(t, got.Change)
			assert.Equal(t, *ev.Change, *got.Change)
		}
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.hlog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	events := sampleEvents()
	for _, ev := range events {
		logger.Log(ev)
	}
	require.NoError(t, logger.Close())

	// Logging after close is a silent no-op.
	logger.Log(events[0])
	require.NoError(t, logger.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var read []Event
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		read = append(read, ev)
	}
	require.Len(t, read, len(events))
	assert.Equal(t, "sensor.temp", read[2].Change.EntityID)
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.hlog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, ev := range sampleEvents() {
		logger.Log(ev)
	}
	require.NoError(t, logger.Close())

	cat := CategoryChange
	reader, err := NewFilteredReader(path, Filter{Category: &cat, EntityID: "sensor.temp"})
	require.NoError(t, err)
	defer reader.Close()

	ev, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, CategoryChange, ev.Category)

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestMultiLogger(t *testing.T) {
	var a, b recorder
	multi := NewMultiLogger(&a, &b)
	multi.Log(Event{ConnectionID: "conn-1"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

type recorder struct {
	events []Event
}

func (r *recorder) Log(event Event) {
	r.events = append(r.events, event)
}
