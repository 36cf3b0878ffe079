// Package auth resolves the caller behind a request so cached responses can
// be keyed per user.
//
// Authenticators validate bearer JWTs and API keys. A Provider tries them in
// order and implements pathcache.IdentityProvider, which is what the
// CurrentUser key source resolves through. Middleware attaches the resolved
// Identity to the request context; a Provider prefers an identity already on
// the context over authenticating again.
package auth
