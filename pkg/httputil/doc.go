// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, course)
//	httputil.WriteErrorCode(w, http.StatusForbidden, "not_enrolled", "not enrolled")
//
// Every error body has the shape {"error": "...", "code": "..."}.
//
// # Request Parsing
//
//	var req courseRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id := httputil.PathVar(r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting
//   - pkg/api: Route handlers built on these helpers
package httputil
