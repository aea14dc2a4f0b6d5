// Package cache provides the key/value session cache and the list result
// cache used by both services.
//
// Cache is deliberately narrow (get/set/delete with TTL plus prefix deletion)
// so that it can be injected into the token issuer and the platform services
// and swapped for LocalCache in tests:
//
//	c := cache.NewLocalCache(10000)
//	issuer := tokens.NewIssuer(cfg, c)
//
// RedisCache is the production backend; it shares one key space between all
// service instances.
//
// ListCache stores paginated list results under
// "list:<kind>:<filter>:<page>:<limit>" and drops every entry of a kind on
// writes to that kind.
package cache
