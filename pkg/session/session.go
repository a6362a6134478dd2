package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hassmon/hassmon-go/pkg/log"
	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/wire"
)

// AuthError reports a handshake rejected by the hub. It is fatal for
// the session; the monitor treats it like any other connection failure
// for backoff purposes.
type AuthError struct {
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication rejected"
	}
	return "authentication rejected: " + e.Message
}

// Defaults for session timing.
const (
	// DefaultHandshakeTimeout bounds dial and each handshake read.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultPingInterval is the interval between keepalive pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultAPIPath is appended to hub URLs that carry no path.
	DefaultAPIPath = "/api/websocket"
)

// Config configures a Session.
type Config struct {
	// URL is the hub endpoint, e.g. "ws://homeassistant.local:8123".
	// http/https schemes are rewritten to ws/wss. A URL without a path
	// gets DefaultAPIPath appended.
	URL string

	// Token is the long-lived access token used to authenticate.
	Token string

	// HandshakeTimeout bounds the dial and each handshake read.
	HandshakeTimeout time.Duration

	// PingInterval is the interval between keepalive pings. The read
	// deadline is twice this interval; a hub that stops answering is
	// detected within one deadline.
	PingInterval time.Duration

	// Logger receives operational log records. May be nil.
	Logger *slog.Logger

	// Trace receives trace events. May be nil.
	Trace log.Logger
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	return c
}

// RawChange is one undecoded state change read off the wire, with the
// entity already resolved through the session's subscription map.
type RawChange struct {
	EntityID       string
	SubscriptionID int64
	FromState      *model.EntityState
	ToState        *model.EntityState
	ForDuration    string
}

// DispatchFunc receives raw changes from the read loop, synchronously.
// If it blocks, frame reading blocks with it.
type DispatchFunc func(RawChange)

// Session is one connection attempt to the hub.
type Session struct {
	cfg  Config
	id   string
	conn *websocket.Conn

	// nextID is the next client-assigned message id. Message ids must
	// be unique per session; they restart at 1 for every new session.
	nextID int64

	// subs maps server-assigned subscription ids back to entity ids.
	// Owned by this session, discarded with it.
	mu   sync.Mutex
	subs map[int64]string

	closeOnce sync.Once
	closed    chan struct{}
}

// EndpointURL normalizes a hub address into a websocket URL: http and
// https schemes become ws and wss, and DefaultAPIPath is appended when
// the URL has no path.
func EndpointURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid hub URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "":
		return "", fmt.Errorf("invalid hub URL %q: missing scheme", raw)
	default:
		return "", fmt.Errorf("invalid hub URL %q: unsupported scheme %q", raw, u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultAPIPath
	}
	return u.String(), nil
}

// Dial opens a websocket to the hub. The returned session has not
// authenticated yet.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	endpoint, err := EndpointURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s := &Session{
		cfg:    cfg,
		id:     uuid.NewString(),
		conn:   conn,
		nextID: 1,
		subs:   make(map[int64]string),
		closed: make(chan struct{}),
	}

	s.trace(log.Event{
		Direction: log.DirectionOut,
		Category:  log.CategoryConnection,
		Conn:      &log.ConnEvent{NewState: "CONNECTED"},
	})
	if cfg.Logger != nil {
		cfg.Logger.Info("connected to hub", "url", endpoint, "session", s.id)
	}

	return s, nil
}

// ID returns the session's connection id used for trace correlation.
func (s *Session) ID() string {
	return s.id
}

// Authenticate performs the auth handshake: await auth_required, send
// the token, await auth_ok. Any other outcome is an *AuthError or a
// transport error; both are fatal for this session.
func (s *Session) Authenticate(ctx context.Context) error {
	msg, err := s.readHandshakeFrame()
	if err != nil {
		return fmt.Errorf("awaiting auth_required: %w", err)
	}
	if msg.Type != wire.TypeAuthRequired {
		return s.authFailed(&AuthError{Message: "unexpected frame " + msg.Type})
	}

	if err := s.conn.WriteJSON(wire.NewAuthRequest(s.cfg.Token)); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	msg, err = s.readHandshakeFrame()
	if err != nil {
		return fmt.Errorf("awaiting auth result: %w", err)
	}

	switch msg.Type {
	case wire.TypeAuthOK:
		s.trace(log.Event{
			Direction: log.DirectionIn,
			Category:  log.CategoryAuth,
			Auth:      &log.AuthEvent{Success: true, HAVersion: msg.HAVersion},
		})
		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("authentication successful", "session", s.id, "ha_version", msg.HAVersion)
		}
		return nil
	case wire.TypeAuthInvalid:
		return s.authFailed(&AuthError{Message: msg.Message})
	default:
		return s.authFailed(&AuthError{Message: "unexpected frame " + msg.Type})
	}
}

// authFailed records the rejection and returns err.
func (s *Session) authFailed(err *AuthError) error {
	s.trace(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryAuth,
		Auth:      &log.AuthEvent{Success: false, Message: err.Message},
	})
	if s.cfg.Logger != nil {
		s.cfg.Logger.Error("authentication failed", "session", s.id, "reason", err.Message)
	}
	return err
}

// Subscribe sends a state-trigger subscription for every entity. Message
// ids are assigned monotonically; the hub echoes them as subscription
// ids in result and event frames. Acknowledgments arrive asynchronously
// and are handled in Run; a rejected subscription only drops that
// entity for this session.
func (s *Session) Subscribe(entityIDs []string) error {
	for _, entityID := range entityIDs {
		s.mu.Lock()
		id := s.nextID
		s.nextID++
		s.subs[id] = entityID
		s.mu.Unlock()

		if err := s.conn.WriteJSON(wire.NewSubscribeRequest(id, entityID)); err != nil {
			return fmt.Errorf("subscribing %s: %w", entityID, err)
		}

		s.trace(log.Event{
			Direction:    log.DirectionOut,
			Category:     log.CategorySubscription,
			Subscription: &log.SubscriptionEvent{EntityID: entityID, SubscriptionID: id},
		})
		if s.cfg.Logger != nil {
			s.cfg.Logger.Debug("subscribed", "session", s.id, "entity", entityID, "subscription_id", id)
		}
	}
	return nil
}

// Run reads frames until the connection fails or Close is called.
// Decoded state changes are handed to dispatch synchronously. A nil
// return means the session ended by Close or a clean server close;
// errors are transport failures.
func (s *Session) Run(dispatch DispatchFunc) error {
	stopPing := s.startKeepAlive()
	defer stopPing()

	readWait := 2 * s.cfg.PingInterval
	s.conn.SetReadDeadline(time.Now().Add(readWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return nil // our own Close unblocked the read
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.trace(log.Event{
					Direction: log.DirectionIn,
					Category:  log.CategoryConnection,
					Conn:      &log.ConnEvent{NewState: "DISCONNECTED", Reason: "server close"},
				})
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.conn.SetReadDeadline(time.Now().Add(readWait))

		msg, err := wire.DecodeServerMessage(data)
		if err != nil {
			// One bad frame must not kill a healthy connection.
			s.logError(err, "decoding frame", "")
			continue
		}

		switch msg.Type {
		case wire.TypeResult:
			s.handleResult(msg)
		case wire.TypeEvent:
			s.handleEvent(msg, dispatch)
		case wire.TypePing:
			// Hub-level ping; answer in kind.
			_ = s.conn.WriteJSON(wire.PongResponse{ID: msg.ID, Type: wire.TypePong})
		case wire.TypePong:
			// Answer to a hub-level ping we never send; ignore.
		default:
			if s.cfg.Logger != nil {
				s.cfg.Logger.Debug("ignoring frame", "session", s.id, "type", msg.Type)
			}
		}
	}
}

// handleResult processes a subscription acknowledgment.
func (s *Session) handleResult(msg *wire.ServerMessage) {
	s.mu.Lock()
	entityID, known := s.subs[msg.ID]
	if known && !msg.Ok() {
		// Rejected: this entity is not monitored for this session.
		delete(s.subs, msg.ID)
	}
	s.mu.Unlock()

	if !known {
		return
	}

	ev := &log.SubscriptionEvent{
		EntityID:       entityID,
		SubscriptionID: msg.ID,
		Acked:          true,
		Success:        msg.Ok(),
	}
	if msg.Error != nil {
		ev.Error = msg.Error.Error()
	}
	s.trace(log.Event{Direction: log.DirectionIn, Category: log.CategorySubscription, Subscription: ev})

	if s.cfg.Logger == nil {
		return
	}
	if msg.Ok() {
		s.cfg.Logger.Info("subscription confirmed", "session", s.id, "entity", entityID, "subscription_id", msg.ID)
	} else {
		s.cfg.Logger.Error("subscription rejected", "session", s.id, "entity", entityID, "error", ev.Error)
	}
}

// handleEvent decodes a state-change notification and dispatches it.
func (s *Session) handleEvent(msg *wire.ServerMessage, dispatch DispatchFunc) {
	s.mu.Lock()
	entityID, known := s.subs[msg.ID]
	s.mu.Unlock()

	if !known || msg.Event == nil {
		return
	}

	trigger := msg.Event.Variables.Trigger
	change := RawChange{
		EntityID:       entityID,
		SubscriptionID: msg.ID,
		FromState:      trigger.FromState,
		ToState:        trigger.ToState,
		ForDuration:    trigger.ForDuration(),
	}

	ev := &log.ChangeEvent{EntityID: entityID, SubscriptionID: msg.ID}
	if trigger.FromState != nil {
		ev.OldState = trigger.FromState.State
	}
	if trigger.ToState != nil {
		ev.NewState = trigger.ToState.State
	}
	s.trace(log.Event{Direction: log.DirectionIn, Category: log.CategoryChange, Change: ev})

	dispatch(change)
}

// startKeepAlive pings the hub periodically so idle connections are not
// dropped and a dead hub is detected within one read deadline. The
// returned func stops the pinger.
func (s *Session) startKeepAlive() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-s.closed:
				return
			case <-ticker.C:
				deadline := time.Now().Add(s.cfg.HandshakeTimeout)
				if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return // read loop will observe the dead socket
				}
			}
		}
	}()
	return func() { close(done) }
}

// Close tears the session down. Safe to call from any goroutine and
// more than once; it unblocks a Run in progress immediately.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)

		// Best-effort close frame; the hub may already be gone.
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		err = s.conn.Close()

		s.trace(log.Event{
			Direction: log.DirectionOut,
			Category:  log.CategoryConnection,
			Conn:      &log.ConnEvent{NewState: "DISCONNECTED", Reason: "closed"},
		})
		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("session closed", "session", s.id)
		}
	})
	return err
}

// SubscribedEntities returns the entities with a live subscription in
// this session, for diagnostics.
func (s *Session) SubscribedEntities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for _, entityID := range s.subs {
		out = append(out, entityID)
	}
	return out
}

// readHandshakeFrame reads one frame with the handshake deadline applied.
func (s *Session) readHandshakeFrame() (*wire.ServerMessage, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg wire.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed handshake frame: %w", err)
	}
	return &msg, nil
}

// trace emits a trace event with timestamp and connection id filled in.
func (s *Session) trace(event log.Event) {
	if s.cfg.Trace == nil {
		return
	}
	event.Timestamp = time.Now()
	event.ConnectionID = s.id
	if s.conn != nil {
		if addr := s.conn.RemoteAddr(); addr != nil {
			event.RemoteAddr = addr.String()
		}
	}
	s.cfg.Trace.Log(event)
}

// logError records a non-fatal error in both logs.
func (s *Session) logError(err error, context, entityID string) {
	s.trace(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: err.Error(), Context: context, EntityID: entityID},
	})
	if s.cfg.Logger != nil {
		s.cfg.Logger.Error(context, "session", s.id, "error", err)
	}
}
