package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memories-sh/memories-go/pkg/dotdir"
)

// EnvPrefix is prepended to every config key to form its environment
// variable: api_key -> MEMORIES_API_KEY, server.listen -> MEMORIES_SERVER_LISTEN.
const EnvPrefix = "MEMORIES"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml (if found via
// dotdir resolution), and binds MEMORIES_* environment variables.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMORIES_API_KEY, MEMORIES_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
		if err := v.ReadInConfig(); err != nil {
			// Config file not found errors are fine, defaults will apply.
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// InitCommandViper runs InitViper against the command's --config-dir flag and
// binds the given registry flags, so a changed flag beats env and config.toml.
func InitCommandViper(cmd *cobra.Command, registryKeys ...string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, Flags, registryKeys)

	return v, nil
}

// FromViper materializes a Config from the merged viper view.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version:   v.GetInt("version"),
		APIKey:    v.GetString(KeyAPIKey),
		BaseURL:   v.GetString(KeyBaseURL),
		TenantID:  v.GetString(KeyTenantID),
		UserID:    v.GetString(KeyUserID),
		ProjectID: v.GetString(KeyProjectID),
		Server: ServerConfig{
			Listen:     v.GetString(KeyServerListen),
			DisableMCP: v.GetBool(KeyServerDisableMCP),
			LogFile:    v.GetString(KeyServerLogFile),
			LogLevel:   v.GetString(KeyServerLogLevel),
		},
		Client: ClientConfig{
			Target: v.GetString(KeyClientTarget),
		},
		Events: EventsConfig{
			Provider: v.GetString(KeyEventsProvider),
			Brokers:  v.GetString(KeyEventsBrokers),
			Topic:    v.GetString(KeyEventsTopic),
		},
		Telemetry: TelemetryConfig{
			Enabled: v.GetBool(KeyTelemetryEnabled),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every key is registered, even when its default
// is empty, so AutomaticEnv can see it.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range ValidConfigKeys() {
		info := configKeys[key]
		switch key {
		case KeyServerDisableMCP:
			v.SetDefault(key, d.Server.DisableMCP)
		case KeyTelemetryEnabled:
			v.SetDefault(key, d.Telemetry.Enabled)
		default:
			v.SetDefault(key, info.get(d))
		}
	}
}
