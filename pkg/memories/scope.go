package memories

import "strings"

// Scope narrows an upstream operation to a tenant, user and/or project.
// Each field is either a non-empty trimmed string or absent.
type Scope struct {
	TenantID  string `json:"tenantId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// NewScope resolves each field as the trimmed override when non-empty, else
// the trimmed default when non-empty, else absent. A blank override is treated
// as absent and falls back to the default. Returns nil when every field is
// absent so the "scope" key is left out of the upstream body.
func NewScope(overrides, defaults Scope) *Scope {
	s := Scope{
		TenantID:  firstNonBlank(overrides.TenantID, defaults.TenantID),
		UserID:    firstNonBlank(overrides.UserID, defaults.UserID),
		ProjectID: firstNonBlank(overrides.ProjectID, defaults.ProjectID),
	}
	if s.IsZero() {
		return nil
	}
	return &s
}

// IsZero reports whether no field is set.
func (s Scope) IsZero() bool {
	return s.TenantID == "" && s.UserID == "" && s.ProjectID == ""
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
