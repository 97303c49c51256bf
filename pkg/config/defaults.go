package config

const (
	// DefaultBaseURL is the hosted memories API.
	DefaultBaseURL = "https://memories.sh"

	defaultListen       = ":8000"
	defaultClientTarget = "http://localhost:8000"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "memories.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		BaseURL: DefaultBaseURL,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
