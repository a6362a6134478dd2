// Package wire defines the JSON messages of the Home Assistant
// websocket API as consumed by the monitor: the authentication
// handshake, state-trigger subscriptions, result acknowledgments and
// event notification frames.
//
// The protocol is owned by the hub; this package only models the subset
// the monitor speaks. Message ids are assigned by the client and must be
// unique within one session.
package wire
