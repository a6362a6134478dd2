package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hassmon/hassmon-go/pkg/convert"
	"github.com/hassmon/hassmon-go/pkg/log"
	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/session"
)

// Monitor errors.
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
	ErrStopTimeout    = errors.New("monitor did not stop within timeout")
)

// State describes the monitor lifecycle.
type State uint8

const (
	// StateIdle means the monitor has not been started.
	StateIdle State = iota
	// StateRunning means the worker is connecting or connected.
	StateRunning
	// StateStopping means Stop was called and the worker is winding down.
	StateStopping
	// StateStopped means the worker has exited.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Callback receives every decoded state change. It runs on the
// monitor's read goroutine.
type Callback func(model.StateChangeEvent)

// Config configures a Monitor.
type Config struct {
	// URL is the hub endpoint, e.g. "ws://homeassistant.local:8123".
	URL string

	// Token is the long-lived access token.
	Token string

	// Entities maps entity ids to their conversion target type.
	Entities map[string]convert.DataType

	// Callback receives decoded state changes. Required.
	Callback Callback

	// Location is the time zone applied to converted timestamps.
	// Nil keeps the hub's reported offsets.
	Location *time.Location

	// HandshakeTimeout bounds dialing and the auth exchange.
	// Zero takes the session default.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive interval. Zero takes the session
	// default.
	PingInterval time.Duration

	// Backoff customizes the reconnect delays.
	Backoff BackoffConfig

	// Logger receives operational log records. May be nil.
	Logger *slog.Logger

	// Trace receives trace events. May be nil.
	Trace log.Logger
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("URL is required")
	}
	if _, err := session.EndpointURL(c.URL); err != nil {
		return err
	}
	if c.Token == "" {
		return errors.New("token is required")
	}
	if len(c.Entities) == 0 {
		return errors.New("at least one entity is required")
	}
	if c.Callback == nil {
		return errors.New("callback is required")
	}
	return nil
}

// Stats are cumulative counters over the monitor's lifetime.
type Stats struct {
	// Dispatched counts state changes delivered to the callback.
	Dispatched uint64

	// Reconnects counts failed sessions, every one of which triggers a
	// backoff delay and a fresh connection attempt.
	Reconnects uint64

	// ConversionFailures counts state strings that did not convert to
	// their entity's declared type.
	ConversionFailures uint64
}

// Monitor supervises a reconnecting hub connection. Create one with
// New; the zero value is not usable.
type Monitor struct {
	cfg      Config
	entities []string

	mu     sync.Mutex
	state  State
	sess   *session.Session
	stopCh chan struct{}
	doneCh chan struct{}

	// gen identifies the current worker; dispatches carrying an older
	// generation are discarded.
	gen atomic.Uint64

	backoff *backoff

	dispatched         atomic.Uint64
	reconnects         atomic.Uint64
	conversionFailures atomic.Uint64
}

// New creates a monitor from cfg. The configuration is validated once
// here; no connection is made until Start.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	entities := make([]string, 0, len(cfg.Entities))
	for entityID := range cfg.Entities {
		entities = append(entities, entityID)
	}

	return &Monitor{
		cfg:      cfg,
		entities: entities,
		state:    StateIdle,
		backoff:  newBackoff(cfg.Backoff),
	}, nil
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Dispatched:         m.dispatched.Load(),
		Reconnects:         m.reconnects.Load(),
		ConversionFailures: m.conversionFailures.Load(),
	}
}

// Entities returns the monitored entity ids.
func (m *Monitor) Entities() []string {
	out := make([]string, len(m.entities))
	copy(out, m.entities)
	return out
}

// Start launches the worker goroutine. It returns immediately; the
// first connection attempt happens asynchronously. Starting a running
// or stopping monitor returns ErrAlreadyRunning. A stopped monitor may
// be started again.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	}

	m.state = StateRunning
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.backoff.reset()
	gen := m.gen.Add(1)

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info("monitor starting", "url", m.cfg.URL, "entities", len(m.entities))
	}

	go m.run(gen, m.stopCh, m.doneCh)
	return nil
}

// Stop shuts the worker down and waits up to timeout for it to exit.
// The current session is closed immediately, which unblocks any read
// in progress. Stopping an idle or stopped monitor returns
// ErrNotRunning. On timeout the monitor is marked stopped anyway and
// ErrStopTimeout is returned.
func (m *Monitor) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.state = StateStopping
	close(m.stopCh)
	if m.sess != nil {
		m.sess.Close()
	}
	done := m.doneCh
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		// Abandon the straggler: advancing the generation makes the
		// dispatch guard discard anything it still delivers and tells
		// its exit cleanup that the lifecycle is no longer its to touch.
		m.gen.Add(1)
		m.mu.Lock()
		m.state = StateStopped
		m.sess = nil
		m.mu.Unlock()
		return ErrStopTimeout
	}
}

// run is the worker loop: one iteration per session, backoff between
// failures. It exits only when stopCh closes.
func (m *Monitor) run(gen uint64, stopCh, doneCh chan struct{}) {
	defer func() {
		m.mu.Lock()
		// A worker abandoned by a timed-out Stop may exit after a
		// restart; only the current generation owns the shared state.
		if m.gen.Load() == gen {
			m.state = StateStopped
			m.sess = nil
		}
		m.mu.Unlock()
		close(doneCh)
		if m.cfg.Logger != nil {
			m.cfg.Logger.Info("monitor worker exited")
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		err := m.runSession(gen, stopCh)

		select {
		case <-stopCh:
			return
		default:
		}

		m.reconnects.Add(1)
		delay := m.backoff.next()
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn("session ended, reconnecting",
				"error", err, "delay", delay, "attempt", m.backoff.attemptCount())
		}

		select {
		case <-stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// runSession performs one full connection attempt: dial, authenticate,
// subscribe, then read until failure or shutdown.
func (m *Monitor) runSession(gen uint64, stopCh chan struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sess, err := session.Dial(ctx, session.Config{
		URL:              m.cfg.URL,
		Token:            m.cfg.Token,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		PingInterval:     m.cfg.PingInterval,
		Logger:           m.cfg.Logger,
		Trace:            m.cfg.Trace,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	m.mu.Lock()
	// Register only while this worker still owns the lifecycle; a
	// straggler past a timed-out Stop must not clobber its successor's
	// session.
	usurped := m.gen.Load() != gen || m.state != StateRunning
	if !usurped {
		m.sess = sess
	}
	m.mu.Unlock()
	if usurped {
		return nil
	}

	if err := sess.Authenticate(ctx); err != nil {
		return err
	}
	if err := sess.Subscribe(m.entities); err != nil {
		return err
	}

	// The connection is healthy; further failures start a fresh
	// backoff sequence.
	m.backoff.reset()

	return sess.Run(func(raw session.RawChange) {
		if m.gen.Load() != gen {
			return // superseded worker, drop silently
		}
		m.dispatch(raw)
	})
}

// dispatch converts one raw change and hands it to the callback.
func (m *Monitor) dispatch(raw session.RawChange) {
	dt, ok := m.cfg.Entities[raw.EntityID]
	if !ok {
		return
	}

	ev := model.StateChangeEvent{
		EntityID:       raw.EntityID,
		SubscriptionID: raw.SubscriptionID,
		DataType:       dt,
		ForDuration:    raw.ForDuration,
	}

	if raw.ToState != nil {
		ev.NewStateRaw = raw.ToState.State
		ev.NewAttributes = raw.ToState.Attributes
		ev.NewState = m.convertState(raw.EntityID, raw.ToState.State, dt)
		ev.LastChanged = m.convertTimestamp(raw.EntityID, raw.ToState.LastChanged)
		ev.LastUpdated = m.convertTimestamp(raw.EntityID, raw.ToState.LastUpdated)
	}
	if raw.FromState != nil {
		ev.OldStateRaw = raw.FromState.State
		ev.OldAttributes = raw.FromState.Attributes
		ev.OldState = m.convertState(raw.EntityID, raw.FromState.State, dt)
	}

	m.dispatched.Add(1)
	m.invoke(ev)
}

// convertState converts a raw state string, recording failures. A
// value that fails conversion is reported as null rather than dropping
// the whole event.
func (m *Monitor) convertState(entityID, raw string, dt convert.DataType) convert.Value {
	v, err := convert.Convert(raw, dt, m.cfg.Location)
	if err != nil {
		m.conversionFailures.Add(1)
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn("state conversion failed",
				"entity", entityID, "raw", raw, "type", dt, "error", err)
		}
		if m.cfg.Trace != nil {
			m.cfg.Trace.Log(log.Event{
				Timestamp: time.Now(),
				Direction: log.DirectionIn,
				Category:  log.CategoryError,
				Error: &log.ErrorEventData{
					Message:  err.Error(),
					Context:  "converting state",
					EntityID: entityID,
				},
			})
		}
	}
	return v
}

// convertTimestamp parses a hub timestamp, tolerating absence.
func (m *Monitor) convertTimestamp(entityID, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := convert.Timestamp(raw, m.cfg.Location)
	if err != nil {
		if m.cfg.Logger != nil {
			m.cfg.Logger.Debug("unparseable timestamp", "entity", entityID, "raw", raw)
		}
		return time.Time{}
	}
	return t
}

// invoke calls the callback, recovering panics so one bad handler
// cannot take down the read loop.
func (m *Monitor) invoke(ev model.StateChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			if m.cfg.Logger != nil {
				m.cfg.Logger.Error("callback panicked", "entity", ev.EntityID, "panic", r)
			}
		}
	}()
	m.cfg.Callback(ev)
}
