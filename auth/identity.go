package auth

import "time"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	// Principal is the unique identifier (user ID, email, service name).
	Principal string

	// TenantID scopes the principal in multi-tenant deployments.
	TenantID string

	Roles  []string
	Method AuthMethod

	// Claims holds the raw token claims or API key metadata.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// UserKey is the value the identity is cached under. Principals of different
// tenants never share a key.
func (id *Identity) UserKey() string {
	if id.TenantID == "" {
		return id.Principal
	}
	return id.TenantID + "/" + id.Principal
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity creates a default anonymous identity.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
