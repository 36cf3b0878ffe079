// Package resilience provides the failure-handling primitives pathcache puts
// around its store.
//
// Retry drives the registry guard's bounded lock polling. CircuitBreaker and
// Timeout are combined by Executor and used by cache.ResilientCache so that a
// slow or failing store degrades caching to pass-through instead of stalling
// requests.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 30 * time.Second,
//	    })),
//	    resilience.WithTimeout(250*time.Millisecond),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return store.Set(ctx, key, value, ttl)
//	})
package resilience
