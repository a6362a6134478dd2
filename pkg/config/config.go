package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hassmon/hassmon-go/pkg/convert"
	"github.com/hassmon/hassmon-go/pkg/monitor"
)

// File is the YAML shape of a configuration file.
type File struct {
	// URL of the hub, e.g. "ws://homeassistant.local:8123".
	URL string `yaml:"url"`

	// Token is the long-lived access token. The HASSMON_TOKEN
	// environment variable overrides it, keeping secrets out of files.
	Token string `yaml:"token"`

	// Timezone applied to converted timestamps, IANA name. Empty keeps
	// the hub's reported offsets.
	Timezone string `yaml:"timezone"`

	// Entities maps entity ids to their conversion type: numeric,
	// string, boolean, integer or datetime (plus common aliases).
	Entities map[string]string `yaml:"entities"`

	// PingInterval between keepalive pings, e.g. "30s".
	PingInterval time.Duration `yaml:"ping_interval"`

	// HandshakeTimeout for dialing and authentication.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Backoff tunes reconnect delays.
	Backoff BackoffFile `yaml:"backoff"`

	// TraceFile is the path to append trace records to. Empty disables
	// tracing.
	TraceFile string `yaml:"trace_file"`
}

// BackoffFile is the YAML shape of the backoff section.
type BackoffFile struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// TokenEnvVar overrides the token key when set.
const TokenEnvVar = "HASSMON_TOKEN"

// Load reads and parses path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config data and applies the environment override.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if tok := os.Getenv(TokenEnvVar); tok != "" {
		f.Token = tok
	}
	return &f, nil
}

// Validate checks the file for completeness and well-formed values.
func (f *File) Validate() error {
	if f.URL == "" {
		return errors.New("url is required")
	}
	if f.Token == "" {
		return fmt.Errorf("token is required (key \"token\" or %s)", TokenEnvVar)
	}
	if len(f.Entities) == 0 {
		return errors.New("at least one entity is required")
	}
	for entityID, typeName := range f.Entities {
		if _, err := convert.ParseDataType(typeName); err != nil {
			return fmt.Errorf("entity %s: %w", entityID, err)
		}
	}
	if f.Timezone != "" {
		if _, err := time.LoadLocation(f.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// MonitorConfig translates a validated file into a monitor.Config.
// The callback is left for the caller to fill in.
func (f *File) MonitorConfig() (monitor.Config, error) {
	if err := f.Validate(); err != nil {
		return monitor.Config{}, err
	}

	entities := make(map[string]convert.DataType, len(f.Entities))
	for entityID, typeName := range f.Entities {
		dt, err := convert.ParseDataType(typeName)
		if err != nil {
			return monitor.Config{}, fmt.Errorf("entity %s: %w", entityID, err)
		}
		entities[entityID] = dt
	}

	var loc *time.Location
	if f.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(f.Timezone)
		if err != nil {
			return monitor.Config{}, fmt.Errorf("timezone: %w", err)
		}
	}

	return monitor.Config{
		URL:              f.URL,
		Token:            f.Token,
		Entities:         entities,
		Location:         loc,
		PingInterval:     f.PingInterval,
		HandshakeTimeout: f.HandshakeTimeout,
		Backoff: monitor.BackoffConfig{
			Initial:    f.Backoff.Initial,
			Max:        f.Backoff.Max,
			Multiplier: f.Backoff.Multiplier,
			Jitter:     f.Backoff.Jitter,
		},
	}, nil
}
