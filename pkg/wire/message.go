package wire

import (
	"encoding/json"
	"fmt"

	"github.com/hassmon/hassmon-go/pkg/model"
)

// Message type strings used by the hub.
const (
	TypeAuthRequired = "auth_required"
	TypeAuth         = "auth"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeResult       = "result"
	TypeEvent        = "event"
	TypeSubscribe    = "subscribe_trigger"
	TypePing         = "ping"
	TypePong         = "pong"
)

// ServerMessage is the envelope of every frame the hub sends. Exactly
// which fields are populated depends on Type.
type ServerMessage struct {
	ID      int64        `json:"id,omitempty"`
	Type    string       `json:"type"`
	Success *bool        `json:"success,omitempty"`
	Error   *ResultError `json:"error,omitempty"`
	Event   *EventBody   `json:"event,omitempty"`

	// Message carries human-readable detail on auth frames.
	Message string `json:"message,omitempty"`

	// HAVersion is reported on auth_required and auth_ok.
	HAVersion string `json:"ha_version,omitempty"`
}

// Ok reports whether a result frame acknowledged success.
func (m *ServerMessage) Ok() bool {
	return m.Success != nil && *m.Success
}

// ResultError describes a rejected request.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AuthRequest is the client's response to auth_required.
type AuthRequest struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// NewAuthRequest builds an auth frame carrying the access token.
func NewAuthRequest(token string) AuthRequest {
	return AuthRequest{Type: TypeAuth, AccessToken: token}
}

// SubscribeRequest subscribes to state changes of a single entity via a
// state trigger.
type SubscribeRequest struct {
	ID      int64        `json:"id"`
	Type    string       `json:"type"`
	Trigger StateTrigger `json:"trigger"`
}

// StateTrigger is the trigger clause of a SubscribeRequest.
type StateTrigger struct {
	Platform string `json:"platform"`
	EntityID string `json:"entity_id"`
}

// NewSubscribeRequest builds a state-trigger subscription for entityID
// with the given client-assigned message id.
func NewSubscribeRequest(id int64, entityID string) SubscribeRequest {
	return SubscribeRequest{
		ID:   id,
		Type: TypeSubscribe,
		Trigger: StateTrigger{
			Platform: "state",
			EntityID: entityID,
		},
	}
}

// PongResponse answers a hub-level ping frame.
type PongResponse struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// EventBody is the payload of an event frame.
type EventBody struct {
	Variables EventVariables `json:"variables"`
}

// EventVariables wraps the trigger data of a state-trigger event.
type EventVariables struct {
	Trigger TriggerData `json:"trigger"`
}

// TriggerData carries the old and new entity states of one change.
// ToState or FromState may be nil, e.g. for a freshly created entity.
type TriggerData struct {
	Platform  string             `json:"platform"`
	EntityID  string             `json:"entity_id"`
	FromState *model.EntityState `json:"from_state"`
	ToState   *model.EntityState `json:"to_state"`
	For       json.RawMessage    `json:"for,omitempty"`
}

// ForDuration renders the trigger's "for" field as a string. The hub
// sends either a quoted duration ("0:00:05") or nothing.
func (t *TriggerData) ForDuration() string {
	if len(t.For) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.For, &s); err == nil {
		return s
	}
	return string(t.For)
}

// DecodeServerMessage parses one frame received from the hub.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("malformed frame: missing type")
	}
	return &msg, nil
}
