package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func bearer(token string) *AuthRequest {
	return &AuthRequest{Headers: http.Header{"Authorization": {"Bearer " + token}}}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret))

	tests := []struct {
		name    string
		headers http.Header
		want    bool
	}{
		{name: "no header", headers: http.Header{}, want: false},
		{name: "bearer token", headers: http.Header{"Authorization": {"Bearer abc"}}, want: true},
		{name: "basic auth", headers: http.Header{"Authorization": {"Basic abc"}}, want: false},
		{name: "api key", headers: http.Header{"X-Api-Key": {"abc"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(context.Background(), &AuthRequest{Headers: tt.headers}); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{
		Issuer:      "pathcache-test",
		Audience:    "api",
		TenantClaim: "tenant",
		RolesClaim:  "roles",
	}, NewStaticKeyProvider(testSecret))

	valid := jwt.MapClaims{
		"sub":    "alice",
		"iss":    "pathcache-test",
		"aud":    "api",
		"tenant": "acme",
		"roles":  []any{"reader", "writer"},
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}

	res, err := a.Authenticate(context.Background(), bearer(signToken(t, valid)))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Authenticated {
		t.Fatalf("valid token rejected: %v", res.Error)
	}
	id := res.Identity
	if id.Principal != "alice" || id.TenantID != "acme" || id.Method != AuthMethodJWT {
		t.Errorf("identity = %+v", id)
	}
	if !id.HasRole("writer") || id.ExpiresAt.IsZero() || id.IssuedAt.IsZero() {
		t.Errorf("roles or times not mapped: %+v", id)
	}
	if id.UserKey() != "acme/alice" {
		t.Errorf("UserKey() = %q", id.UserKey())
	}

	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for kk, vv := range valid {
			c[kk] = vv
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	failures := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: signToken(t, with("exp", time.Now().Add(-time.Hour).Unix())), want: ErrTokenExpired},
		{name: "wrong issuer", token: signToken(t, with("iss", "someone-else")), want: ErrInvalidCredentials},
		{name: "wrong audience", token: signToken(t, with("aud", "web")), want: ErrInvalidCredentials},
		{name: "no subject", token: signToken(t, with("sub", nil)), want: ErrInvalidCredentials},
		{name: "garbage", token: "not.a.token", want: ErrTokenMalformed},
		{name: "empty", token: "", want: ErrMissingCredentials},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatal(err)
			}
			if res.Authenticated {
				t.Fatal("token accepted")
			}
			if !errors.Is(res.Error, tt.want) {
				t.Errorf("Error = %v, want %v", res.Error, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_WrongKey(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider([]byte("another-secret-of-sufficient-length")))
	res, err := a.Authenticate(context.Background(), bearer(signToken(t, jwt.MapClaims{"sub": "alice"})))
	if err != nil {
		t.Fatal(err)
	}
	if res.Authenticated || !errors.Is(res.Error, ErrInvalidCredentials) {
		t.Errorf("result = %+v, want invalid credentials", res)
	}
}
