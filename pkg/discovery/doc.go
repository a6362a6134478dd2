// Package discovery finds hubs on the local network via mDNS.
//
// Hubs advertise themselves as "_home-assistant._tcp" services in the
// "local." domain, carrying their base URL, version and location name
// in TXT records. Browse streams hubs as they are found; Find returns
// the first one, which is usually all a single-hub network needs.
package discovery
