package hubtest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/wire"
)

// DefaultToken is accepted when Config.Token is empty.
const DefaultToken = "test-token"

// Config controls how the fake hub behaves.
type Config struct {
	// Token is the access token the hub accepts. Empty means DefaultToken.
	Token string

	// HAVersion reported on auth frames.
	HAVersion string

	// RejectEntities maps entity ids to a rejection message; subscribing
	// to one of them yields a failed result frame.
	RejectEntities map[string]string

	// RejectAuth makes every handshake fail with auth_invalid.
	RejectAuth bool
}

// Hub is an in-process websocket hub for tests.
type Hub struct {
	cfg Config
	srv *httptest.Server

	connCh chan *Conn
}

// New starts a fake hub. Call Close when done.
func New(cfg Config) *Hub {
	if cfg.Token == "" {
		cfg.Token = DefaultToken
	}
	if cfg.HAVersion == "" {
		cfg.HAVersion = "2025.1.0"
	}
	h := &Hub{
		cfg:    cfg,
		connCh: make(chan *Conn, 16),
	}
	h.srv = httptest.NewServer(http.HandlerFunc(h.handle))
	return h
}

// URL returns the hub's base address with an http scheme; clients are
// expected to rewrite it to ws and append the API path themselves.
func (h *Hub) URL() string {
	return h.srv.URL
}

// NextConn waits for the next client connection to complete its
// handshake (successfully or not).
func (h *Hub) NextConn(timeout time.Duration) (*Conn, error) {
	select {
	case c := <-h.connCh:
		return c, nil
	case <-time.After(timeout):
		return nil, errors.New("hubtest: no connection within timeout")
	}
}

// Close shuts the hub down and drops all connections.
func (h *Hub) Close() {
	h.srv.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/websocket" {
		http.NotFound(w, r)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &Conn{
		hub:    h,
		ws:     ws,
		subs:   make(map[string]int64),
		subCh:  make(chan string, 16),
		closed: make(chan struct{}),
	}

	authed := c.handshake()
	h.connCh <- c
	if !authed {
		c.CloseNormal()
		return
	}
	c.serve()
}

// Conn is the hub side of one client connection.
type Conn struct {
	hub *Hub
	ws  *websocket.Conn

	mu     sync.Mutex // guards writes and subs
	subs   map[string]int64
	subCh  chan string
	closed chan struct{}

	once sync.Once
}

// handshake runs the auth exchange; reports whether the client is in.
func (c *Conn) handshake() bool {
	c.write(map[string]any{"type": wire.TypeAuthRequired, "ha_version": c.hub.cfg.HAVersion})

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := c.ws.ReadJSON(&auth); err != nil {
		return false
	}

	if c.hub.cfg.RejectAuth || auth.Type != wire.TypeAuth || auth.AccessToken != c.hub.cfg.Token {
		c.write(map[string]any{"type": wire.TypeAuthInvalid, "message": "Invalid access token"})
		return false
	}
	c.write(map[string]any{"type": wire.TypeAuthOK, "ha_version": c.hub.cfg.HAVersion})
	return true
}

// serve reads client frames until the connection dies.
func (c *Conn) serve() {
	defer c.Drop()
	for {
		var msg struct {
			ID      int64  `json:"id"`
			Type    string `json:"type"`
			Trigger struct {
				Platform string `json:"platform"`
				EntityID string `json:"entity_id"`
			} `json:"trigger"`
		}
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case wire.TypeSubscribe:
			entity := msg.Trigger.EntityID
			if reason, bad := c.hub.cfg.RejectEntities[entity]; bad {
				c.write(map[string]any{
					"id": msg.ID, "type": wire.TypeResult, "success": false,
					"error": map[string]any{"code": "invalid_format", "message": reason},
				})
			} else {
				c.mu.Lock()
				c.subs[entity] = msg.ID
				c.mu.Unlock()
				c.write(map[string]any{"id": msg.ID, "type": wire.TypeResult, "success": true})
			}
			c.subCh <- entity
		case wire.TypePong:
			// reply to a hub-level ping we sent; nothing to do
		}
	}
}

// AwaitSubscription blocks until the client has subscribed (or been
// rejected for) the given entity.
func (c *Conn) AwaitSubscription(entityID string, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-c.subCh:
			if got == entityID {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("hubtest: no subscription for %s within timeout", entityID)
		}
	}
}

// PushChange sends a state-change event for a subscribed entity.
func (c *Conn) PushChange(entityID string, from, to *model.EntityState, forDur string) error {
	c.mu.Lock()
	id, ok := c.subs[entityID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("hubtest: entity %s not subscribed", entityID)
	}

	trigger := map[string]any{
		"platform":   "state",
		"entity_id":  entityID,
		"from_state": from,
		"to_state":   to,
	}
	if forDur != "" {
		trigger["for"] = forDur
	}
	return c.write(map[string]any{
		"id":   id,
		"type": wire.TypeEvent,
		"event": map[string]any{
			"variables": map[string]any{"trigger": trigger},
		},
	})
}

// PushRaw sends an arbitrary text frame, malformed input included.
func (c *Conn) PushRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a hub-level ping frame with the given message id.
func (c *Conn) Ping(id int64) error {
	return c.write(map[string]any{"id": id, "type": wire.TypePing})
}

// CloseNormal performs a clean websocket close handshake.
func (c *Conn) CloseNormal() {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	c.Drop()
}

// Drop severs the connection without a close handshake, simulating a
// network failure.
func (c *Conn) Drop() {
	c.once.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// Closed reports when the connection has been torn down.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}
