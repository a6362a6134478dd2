// Package session implements one connect-authenticate-subscribe-read
// lifecycle over a single websocket to the hub.
//
// A Session is the sole owner of its socket and of the subscription-id
// to entity mapping built during the handshake. Sessions are not reused:
// on any disconnect the session is discarded and the monitor dials a
// fresh one, which performs a fresh handshake and resubscribes every
// entity. Server-assigned subscription ids are not stable across
// reconnects.
//
// The expected call sequence is Dial, Authenticate, Subscribe, Run.
// Close may be called from any goroutine at any point and unblocks a
// Run in progress immediately.
package session
