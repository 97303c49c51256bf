package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so --target means the same
// thing on "memories add" and "memories search".
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen         = "listen"
	FlagBaseURL        = "base-url"
	FlagDisableMCP     = "disable-mcp"
	FlagLogFile        = "log-file"
	FlagLogLevel       = "log-level"
	FlagTarget         = "target"
	FlagEventsProvider = "events-provider"
	FlagEventsBrokers  = "events-brokers"
	FlagEventsTopic    = "events-topic"
	FlagTelemetry      = "telemetry"
)

// Flags is the registry shared by every memories command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    KeyServerListen,
		Description: "Address for the proxy to listen on",
	},
	FlagBaseURL: {
		Name:        "base-url",
		ViperKey:    KeyBaseURL,
		Description: "Upstream memories API base URL",
	},
	FlagDisableMCP: {
		Name:        "disable-mcp",
		ViperKey:    KeyServerDisableMCP,
		Description: "Do not serve the MCP endpoint at /mcp",
	},
	FlagLogFile: {
		Name:        "log-file",
		ViperKey:    KeyServerLogFile,
		Description: "Also write JSON logs to this file",
	},
	FlagLogLevel: {
		Name:        "log-level",
		ViperKey:    KeyServerLogLevel,
		Description: "Minimum level for the JSON log file (debug, info, warn, error)",
	},
	FlagTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    KeyClientTarget,
		Description: "URL of a running memories proxy",
	},
	FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    KeyEventsProvider,
		Description: "Event stream publisher (nop, kafka)",
	},
	FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    KeyEventsBrokers,
		Description: "Comma separated Kafka brokers",
	},
	FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    KeyEventsTopic,
		Description: "Kafka topic for memory events",
	},
	FlagTelemetry: {
		Name:        "telemetry",
		ViperKey:    KeyTelemetryEnabled,
		Description: "Record otel spans and metrics for upstream calls (logged at debug level)",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
