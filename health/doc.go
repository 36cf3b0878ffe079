// Package health reports whether a pathcache deployment can serve.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// package ships checkers for the cache store (ping or round trip), the key
// registry (size and slow reads) and bounded in-memory stores (fill ratio).
// An Aggregator runs them concurrently with a shared deadline:
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewStoreChecker(store, ""))
//	agg.Register("registry", health.NewRegistryChecker(pc.Registry()))
//	health.RegisterHandlers(mux, agg)
//
// RegisterHandlers serves /healthz (liveness), /readyz (503 when any check
// is unhealthy), /health (every check as JSON) and /health/{name}.
package health
