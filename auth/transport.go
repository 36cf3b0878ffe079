package auth

import "net/http"

// Middleware authenticates every request and attaches the identity to its
// context. Requests that fail authentication get 401 and never reach next.
//
// Usage:
//
//	mux.Handle("/profile", provider.Middleware(pc.Middleware(spec)(profile)))
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := p.Authenticate(r.Context(), &AuthRequest{Headers: r.Header, Path: r.URL.Path})
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pathcache"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
