// Package rest is a small client for the hub's HTTP API.
//
// It complements the websocket monitor: the monitor only sees changes,
// so applications use the REST API to read the current state of
// entities, typically once at startup before subscriptions take over.
package rest
