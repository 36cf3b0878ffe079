package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/pathcache"
)

func newTestProvider(opts ...ProviderOption) *Provider {
	keys := NewMemoryAPIKeyStore()
	keys.AddKey("svc-report", "k-123")
	return NewProvider([]Authenticator{
		NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret)),
		NewAPIKeyAuthenticator(APIKeyConfig{}, keys),
	}, opts...)
}

func TestProvider_CurrentIdentity(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	tests := []struct {
		name    string
		headers map[string]string
		want    string
		wantErr error
	}{
		{name: "jwt", headers: map[string]string{"Authorization": "Bearer " + token}, want: "alice"},
		{name: "api key", headers: map[string]string{"X-API-Key": "k-123"}, want: "svc-report"},
		{
			name:    "first supporting authenticator decides",
			headers: map[string]string{"Authorization": "Bearer bad.token.here", "X-API-Key": "k-123"},
			wantErr: ErrTokenMalformed,
		},
		{name: "bad key", headers: map[string]string{"X-API-Key": "nope"}, wantErr: ErrInvalidCredentials},
		{name: "no credentials", wantErr: ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pathcache.NewRequest(pathcache.RequestData{Path: "/profile", Headers: tt.headers})
			got, err := p.CurrentIdentity(ctx, req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CurrentIdentity() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CurrentIdentity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProvider_ContextIdentityWins(t *testing.T) {
	p := newTestProvider()
	ctx := WithIdentity(context.Background(), &Identity{Principal: "carol", TenantID: "acme"})
	req := pathcache.NewRequest(pathcache.RequestData{Headers: map[string]string{"X-API-Key": "k-123"}})

	got, err := p.CurrentIdentity(ctx, req)
	if err != nil || got != "acme/carol" {
		t.Errorf("CurrentIdentity() = (%q, %v), want acme/carol", got, err)
	}
}

func TestProvider_Anonymous(t *testing.T) {
	p := newTestProvider(WithAnonymous())

	id, err := p.Authenticate(context.Background(), &AuthRequest{Headers: http.Header{}})
	if err != nil || !id.IsAnonymous() {
		t.Errorf("Authenticate() = (%+v, %v), want anonymous", id, err)
	}

	_, err = p.Authenticate(context.Background(), &AuthRequest{Headers: http.Header{"X-Api-Key": {"nope"}}})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad key with anonymous fallback: error = %v", err)
	}
}

func TestProvider_InternalError(t *testing.T) {
	boom := errors.New("key store offline")
	p := NewProvider([]Authenticator{NewAuthenticatorFunc("broken",
		func(context.Context, *AuthRequest) bool { return true },
		func(context.Context, *AuthRequest) (*AuthResult, error) { return nil, boom },
	)})

	if _, err := p.Authenticate(context.Background(), &AuthRequest{}); !errors.Is(err, boom) {
		t.Errorf("Authenticate() error = %v, want %v", err, boom)
	}
}

func TestProvider_WithPathCache(t *testing.T) {
	p := newTestProvider()
	pc, err := pathcache.New(cache.NewMemoryCache(cache.MemoryConfig{}), pathcache.WithIdentityProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	spec := pathcache.KeySpec{User: pathcache.CurrentUser()}
	ctx := context.Background()

	keyFor := func(apiKey string) pathcache.Key {
		t.Helper()
		req := pathcache.NewRequest(pathcache.RequestData{
			Method:  "GET",
			Path:    "/profile",
			Headers: map[string]string{"X-API-Key": apiKey},
		})
		k, err := pc.Compose(ctx, req, spec)
		if err != nil {
			t.Fatal(err)
		}
		return k
	}

	key := keyFor("k-123")
	if key.Segments[2] != pathcache.Hash("svc-report") {
		t.Error("user segment is not the authenticated principal")
	}

	req := pathcache.NewRequest(pathcache.RequestData{Path: "/profile"})
	if _, err := pc.Compose(ctx, req, spec); !errors.Is(err, pathcache.ErrComposition) {
		t.Errorf("unauthenticated compose error = %v, want ErrComposition", err)
	}
}

func TestMiddleware(t *testing.T) {
	p := newTestProvider()
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PrincipalFromContext(r.Context())))
	}))

	req := httptest.NewRequest("GET", "/profile", nil)
	req.Header.Set("X-API-Key", "k-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "svc-report" {
		t.Errorf("authenticated response = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}
