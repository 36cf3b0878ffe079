// Package secret resolves credentials referenced from pathcached
// configuration, such as the Redis password or the JWT signing key, so they
// never have to be written into the config file.
//
// A configuration value is first expanded against the environment (see
// ExpandEnvStrict) and then has its secret references resolved:
//   - Full value:  secretref:env:PATHCACHE_REDIS_PASSWORD
//   - Inline use:  Bearer secretref:file:/run/secrets/api-token
//
// The env and file providers are registered in DefaultRegistry.
package secret
