// Package cache provides a caching sphinxql.Executor.
//
// Results are keyed by the SHA-256 of the rendered statement and looked up
// in two tiers: an expirable in-process LRU, then redis. Redis errors are
// logged and counted but never fail a query. Errors from the wrapped
// executor are not cached.
//
//	cached := cache.New(client, cache.DefaultConfig(), redisClient, logger, metrics)
//	rs, err := sphinxql.New(cached).AddIndex("products").Search("phone").Execute(ctx)
//
// Values read back from redis are JSON-decoded, so numbers arrive as
// json.Number.
package cache
