package log

import (
	"time"
)

// Event is one trace record captured during a monitoring run.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID correlates events of one session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the hub address (host:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Conn         *ConnEvent         `cbor:"6,keyasint,omitempty"`  // session lifecycle
	Auth         *AuthEvent         `cbor:"7,keyasint,omitempty"`  // handshake outcome
	Subscription *SubscriptionEvent `cbor:"8,keyasint,omitempty"`  // subscribe request/ack
	Change       *ChangeEvent       `cbor:"9,keyasint,omitempty"`  // dispatched state change
	Error        *ErrorEventData    `cbor:"10,keyasint,omitempty"` // errors at any point
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame or state observed on the hub.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame or local action.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryConnection indicates a session lifecycle transition.
	CategoryConnection Category = 0
	// CategoryAuth indicates an authentication handshake event.
	CategoryAuth Category = 1
	// CategorySubscription indicates a subscription request or ack.
	CategorySubscription Category = 2
	// CategoryChange indicates a dispatched entity state change.
	CategoryChange Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "CONNECTION"
	case CategoryAuth:
		return "AUTH"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryChange:
		return "CHANGE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ConnEvent captures a session lifecycle transition.
type ConnEvent struct {
	// OldState is the previous state name (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"2,keyasint"`

	// Reason for the transition (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// AuthEvent captures the outcome of an authentication handshake.
type AuthEvent struct {
	// Success indicates whether the hub accepted the token.
	Success bool `cbor:"1,keyasint"`

	// HAVersion is the hub version reported during the handshake.
	HAVersion string `cbor:"2,keyasint,omitempty"`

	// Message carries hub-provided detail on rejection.
	Message string `cbor:"3,keyasint,omitempty"`
}

// SubscriptionEvent captures one subscription request or acknowledgment.
type SubscriptionEvent struct {
	// EntityID is the subscribed entity.
	EntityID string `cbor:"1,keyasint"`

	// SubscriptionID is the client-assigned message id of the request,
	// echoed by the hub as the subscription id.
	SubscriptionID int64 `cbor:"2,keyasint"`

	// Acked indicates this records the hub's acknowledgment rather
	// than the outgoing request.
	Acked bool `cbor:"3,keyasint,omitempty"`

	// Success is the acknowledgment outcome (only meaningful when Acked).
	Success bool `cbor:"4,keyasint,omitempty"`

	// Error carries the hub's rejection detail.
	Error string `cbor:"5,keyasint,omitempty"`
}

// ChangeEvent captures a state change dispatched to the callback.
type ChangeEvent struct {
	// EntityID is the entity that changed.
	EntityID string `cbor:"1,keyasint"`

	// SubscriptionID correlates the change to its subscription.
	SubscriptionID int64 `cbor:"2,keyasint"`

	// OldState and NewState are the raw state strings.
	OldState string `cbor:"3,keyasint,omitempty"`
	NewState string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any point of the pipeline.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// EntityID is set when the error concerns a single entity.
	EntityID string `cbor:"3,keyasint,omitempty"`
}
