// Package observe provides the logging, metrics and tracing used by pathcache.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. pathcache records lookups, evictions and registry
// health through Metrics, spans its operations through Tracer and wraps
// compute functions with Middleware.
package observe
