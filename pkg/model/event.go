package model

import (
	"time"

	"github.com/hassmon/hassmon-go/pkg/convert"
)

// EntityState is the state record the hub reports for one entity, both
// over the websocket (inside trigger frames) and from the REST API.
// Timestamps are left as raw strings; conversion happens at dispatch.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// StateChangeEvent describes one observed state change of a monitored
// entity. Instances are immutable after construction.
type StateChangeEvent struct {
	// EntityID names the entity that changed.
	EntityID string

	// SubscriptionID is the server-assigned id of the subscription
	// that produced the event. Not stable across reconnects.
	SubscriptionID int64

	// DataType is the entity's declared conversion target.
	DataType convert.DataType

	// NewState and OldState are the converted values. Null when the
	// hub reported a sentinel state or conversion failed.
	NewState convert.Value
	OldState convert.Value

	// NewStateRaw and OldStateRaw are the unconverted state strings,
	// empty when the hub omitted the corresponding side.
	NewStateRaw string
	OldStateRaw string

	// NewAttributes and OldAttributes are the entity attribute maps.
	NewAttributes map[string]any
	OldAttributes map[string]any

	// LastChanged and LastUpdated are the hub's timestamps for the new
	// state, converted to the monitor's time zone. Zero when absent or
	// unparseable.
	LastChanged time.Time
	LastUpdated time.Time

	// ForDuration is set for delayed triggers: how long the state had
	// to hold before the event fired.
	ForDuration string
}
