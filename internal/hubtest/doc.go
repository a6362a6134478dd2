// Package hubtest provides a scripted in-process hub for tests.
//
// A Hub speaks the websocket API far enough to exercise clients:
// it demands authentication, acknowledges state-trigger subscriptions,
// answers hub-level pings and lets the test push state-change events
// or drop the connection at will. Behavior is controlled per Hub via
// Config and per connection via the Conn handle obtained from NextConn.
package hubtest
