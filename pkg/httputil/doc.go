// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteList(w, result.Items, result.Page, result.Total)
//
// Errors from the service layer are classified with pkg/apperr and written
// with WriteAppError, which picks the status code and renders
// {"error": message, "field": name}:
//
//	if err := svc.Update(ctx, id, req); err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//
// # Request Parsing
//
//	var req auth.LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	q, err := httputil.ParseListQuery(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//		httputil.ContentTypeMiddleware,
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication, rate limiting and access logging
package httputil
