// Package api serves the statement builder over HTTP.
//
// # Endpoints
//
//	GET    /search                  build, execute and return rows
//	GET    /indexes/{index}/search  same, with the index in the path
//	GET    /render                  build and return the statement only
//	GET    /cache/stats             result cache counters
//	DELETE /cache                   purge the result cache in the background
//	GET    /health, /health/live, /health/ready
//	GET    /metrics
//
// Search parameters map one-to-one onto sphinxql.Params:
//
//	GET /search?index=products&q=phone&field=name%3Dtitle&filter=price:lt:500&order=price:desc&limit=10
//
// renders
//
//	SELECT title AS name FROM products WHERE MATCH('phone') AND price < 500 ORDER BY price DESC LIMIT 0, 10
//
// Malformed parameters are answered with 400. Execution failures map to 502,
// or 504 when the request deadline expired. limit is capped at MaxLimit.
//
// # Usage
//
//	search := api.NewSearchHandlers(executor)
//	server := api.NewServer(search, checker,
//	    api.WithLogger(logger),
//	    api.WithMetrics(registry, metrics),
//	    api.WithRoutes(api.NewCacheHandlers(results, logger)),
//	    api.WithMiddleware(middleware.RateLimit(limiter, ips, logger)),
//	)
//	http.ListenAndServe(":8080", server)
package api
