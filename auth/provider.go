package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonwraymond/pathcache/observe"
	"github.com/jonwraymond/pathcache/pathcache"
)

// Provider resolves the identity behind a request by trying its
// authenticators in order. It implements pathcache.IdentityProvider.
type Provider struct {
	authenticators []Authenticator
	anonymous      bool
	logger         observe.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithAnonymous makes requests without credentials resolve to
// AnonymousIdentity instead of failing with ErrMissingCredentials.
// Invalid credentials still fail.
func WithAnonymous() ProviderOption {
	return func(p *Provider) { p.anonymous = true }
}

// WithProviderLogger sets the logger for rejected credentials.
func WithProviderLogger(l observe.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// NewProvider returns a Provider trying authenticators in the given order.
func NewProvider(authenticators []Authenticator, opts ...ProviderOption) *Provider {
	p := &Provider{
		authenticators: authenticators,
		logger:         observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate returns the identity of the first authenticator that
// supports req. Without a supporting authenticator it returns
// ErrMissingCredentials, or the anonymous identity if enabled.
func (p *Provider) Authenticate(ctx context.Context, req *AuthRequest) (*Identity, error) {
	for _, a := range p.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		res, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s authenticator: %w", a.Name(), err)
		}
		if !res.Authenticated {
			p.logger.Debug(ctx, "credentials rejected",
				observe.F("authenticator", a.Name()), observe.F("error", res.Error))
			return nil, res.Error
		}
		if res.Identity.IsExpired() {
			return nil, ErrTokenExpired
		}
		return res.Identity, nil
	}

	if p.anonymous {
		return AnonymousIdentity(), nil
	}
	return nil, ErrMissingCredentials
}

// CurrentIdentity returns the user key of the caller. An identity already
// attached to ctx wins over the request's credentials.
func (p *Provider) CurrentIdentity(ctx context.Context, req pathcache.Request) (string, error) {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserKey(), nil
	}

	headers := http.Header{}
	for _, k := range req.HeaderKeys() {
		headers.Set(k, req.Header(k))
	}
	id, err := p.Authenticate(ctx, &AuthRequest{Headers: headers, Path: req.Path()})
	if err != nil {
		return "", err
	}
	return id.UserKey(), nil
}

var _ pathcache.IdentityProvider = (*Provider)(nil)
