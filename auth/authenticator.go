package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Authenticate returns (nil, error) for internal errors;
//   returns (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if the request carries credentials this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest is the part of a request credentials are read from.
type AuthRequest struct {
	Headers http.Header

	// Path is the request path, for authenticators that scope credentials.
	Path string
}

// GetHeader returns the first value for a header, or empty string. Names are
// case-insensitive.
func (r *AuthRequest) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	Authenticated bool

	// Identity is set only if Authenticated.
	Identity *Identity

	// Error is set only if not Authenticated.
	Error error

	// Method names the authenticator that produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{
		Authenticated: false,
		Error:         err,
		Method:        method,
	}
}

// AuthenticatorFunc adapts functions to an Authenticator.
type AuthenticatorFunc struct {
	name     string
	supports func(ctx context.Context, req *AuthRequest) bool
	auth     func(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(
	name string,
	supports func(ctx context.Context, req *AuthRequest) bool,
	auth func(ctx context.Context, req *AuthRequest) (*AuthResult, error),
) *AuthenticatorFunc {
	return &AuthenticatorFunc{
		name:     name,
		supports: supports,
		auth:     auth,
	}
}

func (f *AuthenticatorFunc) Name() string { return f.name }

func (f *AuthenticatorFunc) Supports(ctx context.Context, req *AuthRequest) bool {
	return f.supports(ctx, req)
}

func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.auth(ctx, req)
}

var _ Authenticator = (*AuthenticatorFunc)(nil)
