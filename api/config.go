// Package api provides the HTTP server for the memories proxy: health,
// memory add/search and context endpoints in front of the upstream
// memories API, plus the MCP endpoint.
package api

// DefaultServiceName is reported by GET /health and stamped on events.
const DefaultServiceName = "memories-python-starter"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// ServiceName overrides DefaultServiceName.
	ServiceName string

	// DisableMCP turns off the /mcp endpoint.
	DisableMCP bool
}
