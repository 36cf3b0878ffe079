package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/pathcache/auth"
	"github.com/jonwraymond/pathcache/health"
	"github.com/jonwraymond/pathcache/observe"
	"github.com/jonwraymond/pathcache/pathcache"
)

// adminRole is required by the invalidation endpoints.
const adminRole = "cache-admin"

var (
	messagesSpec = pathcache.KeySpec{
		User:  pathcache.CurrentUser(),
		Get:   pathcache.Keys("type", "page"),
		Order: []pathcache.Dimension{pathcache.DimPath, pathcache.DimMethod, pathcache.DimUser, pathcache.DimGet},
	}
	profileSpec = pathcache.KeySpec{
		User:  pathcache.CurrentUser(),
		Order: []pathcache.Dimension{pathcache.DimPath, pathcache.DimMethod, pathcache.DimUser},
	}
	geoSpec = pathcache.KeySpec{
		Headers: pathcache.Keys("cf-ipcountry"),
		Get:     pathcache.Keys("lat", "lng"),
		Order:   []pathcache.Dimension{pathcache.DimHeaders, pathcache.DimPath, pathcache.DimGet},
	}
)

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	health.RegisterHandlers(mux, a.health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))

	mux.Handle("GET /messages", a.auth.Middleware(a.pc.Middleware(messagesSpec)(http.HandlerFunc(a.messages))))
	mux.Handle("GET /profile", a.auth.Middleware(a.pc.Middleware(profileSpec)(http.HandlerFunc(a.profile))))
	mux.Handle("GET /geo", a.pc.Middleware(geoSpec)(http.HandlerFunc(a.geo)))

	mux.Handle("DELETE /cache", a.auth.Middleware(requireRole(adminRole, http.HandlerFunc(a.invalidate))))
	mux.Handle("DELETE /cache/all", a.auth.Middleware(requireRole(adminRole, http.HandlerFunc(a.invalidateAll))))

	return mux
}

func (a *app) messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := valueOr(q.Get("type"), "inbox")
	page := valueOr(q.Get("page"), "1")
	user := auth.PrincipalFromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"type":         kind,
		"page":         page,
		"messages":     []string{kind + " message 1 for " + user, kind + " message 2 for " + user},
		"generated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *app) profile(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         id.Principal,
		"tenant":       id.TenantID,
		"roles":        id.Roles,
		"generated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *app) geo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]any{
		"country":      r.Header.Get("CF-IPCountry"),
		"lat":          q.Get("lat"),
		"lng":          q.Get("lng"),
		"generated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// invalidate deletes the entries under the prefix given as query parameters:
//
//	DELETE /cache?path=/messages&method=GET&user=alice&get=type=sent&order=path,method,user,get
//
// Multi-value dimensions take repeated k=v values; an empty value selects
// none. recursive=false refuses to delete more than one entry, and
// current_user=true keys the user dimension on the caller's own identity.
func (a *app) invalidate(w http.ResponseWriter, r *http.Request) {
	prefix, opts, err := parsePrefix(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	opts.Request = pathcache.FromHTTP(r)
	n, err := a.pc.Delete(r.Context(), prefix, opts)
	if err != nil {
		a.logger.Warn(r.Context(), "invalidation failed",
			observe.F("deleted", n),
			observe.F("error", err.Error()))
		writeJSON(w, deleteStatus(err), map[string]any{"deleted": n, "error": err.Error()})
		return
	}
	a.logger.Info(r.Context(), "cache invalidated", observe.F("deleted", n))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (a *app) invalidateAll(w http.ResponseWriter, r *http.Request) {
	n, err := a.pc.DeleteAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"deleted": n, "error": err.Error()})
		return
	}
	a.logger.Info(r.Context(), "cache flushed", observe.F("deleted", n))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func parsePrefix(q url.Values) (pathcache.Prefix, pathcache.DeleteOptions, error) {
	var opts pathcache.DeleteOptions
	prefix := pathcache.Prefix{}

	for name, values := range q {
		switch name {
		case "order":
			order, err := pathcache.ParseOrder(strings.Split(q.Get("order"), ","))
			if err != nil {
				return nil, opts, err
			}
			opts.Order = order
			continue
		case "recursive":
			opts.NonRecursive = q.Get("recursive") == "false"
			continue
		case "deferred":
			opts.Deferred = q.Get("deferred") == "true"
			continue
		case "current_user":
			if q.Get("current_user") == "true" {
				prefix[pathcache.DimUser] = pathcache.PrefixUser(pathcache.CurrentUser())
			}
			continue
		}

		d, err := pathcache.ParseDimension(name)
		if err != nil {
			return nil, opts, err
		}
		if !d.MultiValue() {
			prefix[d] = pathcache.Scalar(values[0])
			continue
		}
		var kv []string
		for _, v := range values {
			if v == "" {
				continue
			}
			k, val, _ := strings.Cut(v, "=")
			kv = append(kv, k, val)
		}
		prefix[d] = pathcache.Pairs(kv...)
	}
	return prefix, opts, nil
}

func deleteStatus(err error) int {
	switch {
	case errors.Is(err, pathcache.ErrResolve), errors.Is(err, pathcache.ErrInvalidDimension):
		return http.StatusBadRequest
	case errors.Is(err, pathcache.ErrRecursionRequired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if id == nil || !id.HasRole(role) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
