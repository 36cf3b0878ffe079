package health_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/health"
	"github.com/jonwraymond/pathcache/pathcache"
)

func ExampleAggregator() {
	store := cache.NewMemoryCache(cache.MemoryConfig{MaxEntries: 1000})
	pc, _ := pathcache.New(store)

	agg := health.NewAggregator()
	agg.Register("store", health.NewStoreChecker(store, ""))
	agg.Register("registry", health.NewRegistryChecker(pc.Registry()))
	agg.Register("capacity", health.NewCapacityChecker(store, health.CapacityCheckerConfig{MaxEntries: 1000}))

	results := agg.CheckAll(context.Background())
	fmt.Println(agg.OverallStatus(results))
	// Output:
	// healthy
}

func ExampleRegisterHandlers() {
	agg := health.NewAggregator()
	agg.Register("store", health.NewStoreChecker(cache.NewMemoryCache(cache.MemoryConfig{}), ""))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	fmt.Println(rec.Code, rec.Body.String())
	// Output:
	// 200 OK
}
