// Package config loads monitor configuration from YAML files.
//
// A minimal file names the hub, the token and the entities to watch:
//
//	url: ws://homeassistant.local:8123
//	token: <long-lived access token>
//	entities:
//	  sensor.temperature: numeric
//	  light.kitchen: boolean
//
// Everything else has working defaults. See File for the full set of
// keys.
package config
