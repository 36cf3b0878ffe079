package auth

import (
	"context"
	"testing"
	"time"
)

func TestIdentity_UserKey(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{name: "principal only", id: Identity{Principal: "alice"}, want: "alice"},
		{name: "tenant scoped", id: Identity{Principal: "alice", TenantID: "acme"}, want: "acme/alice"},
		{name: "anonymous", id: *AnonymousIdentity(), want: "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.UserKey(); got != tt.want {
				t.Errorf("UserKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentity_Predicates(t *testing.T) {
	id := &Identity{Principal: "alice", Roles: []string{"admin"}, Method: AuthMethodJWT}
	if !id.HasRole("admin") || id.HasRole("viewer") {
		t.Error("HasRole mismatch")
	}
	if id.IsExpired() {
		t.Error("identity without expiry reported expired")
	}
	if id.IsAnonymous() {
		t.Error("named identity reported anonymous")
	}

	id.ExpiresAt = time.Now().Add(-time.Minute)
	if !id.IsExpired() {
		t.Error("past expiry not reported")
	}
	if !AnonymousIdentity().IsAnonymous() {
		t.Error("AnonymousIdentity is not anonymous")
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || PrincipalFromContext(ctx) != "" {
		t.Error("empty context returned an identity")
	}

	id := &Identity{Principal: "bob"}
	ctx = WithIdentity(ctx, id)
	if IdentityFromContext(ctx) != id {
		t.Error("IdentityFromContext did not return the attached identity")
	}
	if PrincipalFromContext(ctx) != "bob" {
		t.Errorf("PrincipalFromContext() = %q", PrincipalFromContext(ctx))
	}
}
