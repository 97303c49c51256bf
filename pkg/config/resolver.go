package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/memories-sh/memories-go/pkg/memories"
)

// MissingError reports a required setting that is unset or blank.
type MissingError struct {
	// Env is the environment variable that would satisfy the setting.
	Env string
}

func (e *MissingError) Error() string {
	return "Missing environment variable: " + e.Env
}

// Resolver reads settings through viper on every call. Nothing is cached:
// the environment is static for the process lifetime, and viper consults it
// on each Get.
type Resolver struct {
	v *viper.Viper
}

var _ memories.Settings = (*Resolver)(nil)

// NewResolver wraps an initialized viper instance (see InitViper).
func NewResolver(v *viper.Viper) *Resolver {
	return &Resolver{v: v}
}

// EnvName returns the environment variable bound to a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Required returns the trimmed value of key, or a *MissingError when the
// value is empty after trimming.
func (r *Resolver) Required(key string) (string, error) {
	value := r.Optional(key)
	if value == "" {
		return "", &MissingError{Env: EnvName(key)}
	}
	return value, nil
}

// Optional returns the trimmed value of key, or "" when unset.
func (r *Resolver) Optional(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

// APIKey returns the upstream bearer token.
func (r *Resolver) APIKey() (string, error) {
	return r.Required(KeyAPIKey)
}

// BaseURL returns the configured upstream base URL or DefaultBaseURL.
// Trailing slashes are kept; the client strips them when joining paths.
func (r *Resolver) BaseURL() string {
	if u := r.Optional(KeyBaseURL); u != "" {
		return u
	}
	return DefaultBaseURL
}

// ScopeDefaults returns the environment-level tenant, user and project.
func (r *Resolver) ScopeDefaults() memories.Scope {
	return memories.Scope{
		TenantID:  r.Optional(KeyTenantID),
		UserID:    r.Optional(KeyUserID),
		ProjectID: r.Optional(KeyProjectID),
	}
}
