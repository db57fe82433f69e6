// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, result)
//	httputil.WriteBadRequest(w, "index is required")
//	httputil.WriteBadGateway(w, err)
//
// Errors are always written as {"error": "..."}.
//
// # Request Parsing
//
//	index, ok := httputil.ParsePathStringOrError(w, r, "index")
//	indexes := httputil.ParseQueryStrings(r, "index")
//	limit, err := httputil.ParseOptionalQueryInt(r, "limit")
//	term := httputil.ParseOptionalQueryString(r, "q")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)(router)
//
// RequestIDMiddleware must run before LoggingMiddleware for log entries to
// carry request_id.
package httputil
