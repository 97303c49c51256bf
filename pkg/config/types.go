package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent memories configuration stored as
// config.toml in the .memories/ directory. Upstream credentials and scope
// defaults sit at the top level so they map onto the MEMORIES_* environment
// variables one to one (api_key -> MEMORIES_API_KEY).
type Config struct {
	Version   int             `toml:"version"`
	APIKey    string          `toml:"api_key,omitempty"`
	BaseURL   string          `toml:"base_url,omitempty"`
	TenantID  string          `toml:"tenant_id,omitempty"`
	UserID    string          `toml:"user_id,omitempty"`
	ProjectID string          `toml:"project_id,omitempty"`
	Server    ServerConfig    `toml:"server"`
	Client    ClientConfig    `toml:"client"`
	Events    EventsConfig    `toml:"events"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig holds settings for the proxy HTTP server.
type ServerConfig struct {
	Listen     string `toml:"listen,omitempty"`
	DisableMCP bool   `toml:"disable_mcp,omitempty"`

	// LogFile, when set, receives a JSON copy of every log record.
	LogFile string `toml:"log_file,omitempty"`

	// LogLevel sets the minimum level written to LogFile (debug, info, warn,
	// error). Empty follows --debug.
	LogLevel string `toml:"log_level,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running proxy
// (memories add, memories search, ...). Target is a full URL.
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// EventsConfig selects the event stream publisher.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// TelemetryConfig toggles otel span and metric recording.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get    func(c *Config) string
	set    func(c *Config, v string) error
	secret bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure, and are
// also the viper keys.
var configKeys = map[string]configKeyInfo{
	KeyAPIKey: {
		get:    func(c *Config) string { return c.APIKey },
		set:    func(c *Config, v string) error { c.APIKey = v; return nil },
		secret: true,
	},
	KeyBaseURL:          stringKey(func(c *Config) *string { return &c.BaseURL }),
	KeyTenantID:         stringKey(func(c *Config) *string { return &c.TenantID }),
	KeyUserID:           stringKey(func(c *Config) *string { return &c.UserID }),
	KeyProjectID:        stringKey(func(c *Config) *string { return &c.ProjectID }),
	KeyServerListen:     stringKey(func(c *Config) *string { return &c.Server.Listen }),
	KeyServerDisableMCP: boolKey(KeyServerDisableMCP, func(c *Config) *bool { return &c.Server.DisableMCP }),
	KeyServerLogFile:    stringKey(func(c *Config) *string { return &c.Server.LogFile }),
	KeyServerLogLevel:   stringKey(func(c *Config) *string { return &c.Server.LogLevel }),
	KeyClientTarget:     stringKey(func(c *Config) *string { return &c.Client.Target }),
	KeyEventsProvider:   stringKey(func(c *Config) *string { return &c.Events.Provider }),
	KeyEventsBrokers:    stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	KeyEventsTopic:      stringKey(func(c *Config) *string { return &c.Events.Topic }),
	KeyTelemetryEnabled: boolKey(KeyTelemetryEnabled, func(c *Config) *bool { return &c.Telemetry.Enabled }),
}

// Config keys.
const (
	KeyAPIKey           = "api_key"
	KeyBaseURL          = "base_url"
	KeyTenantID         = "tenant_id"
	KeyUserID           = "user_id"
	KeyProjectID        = "project_id"
	KeyServerListen     = "server.listen"
	KeyServerDisableMCP = "server.disable_mcp"
	KeyServerLogFile    = "server.log_file"
	KeyServerLogLevel   = "server.log_level"
	KeyClientTarget     = "client.target"
	KeyEventsProvider   = "events.provider"
	KeyEventsBrokers    = "events.brokers"
	KeyEventsTopic      = "events.topic"
	KeyTelemetryEnabled = "telemetry.enabled"
)
