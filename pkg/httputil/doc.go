// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Responses
//
// Every error body shares one shape so clients can branch on code:
//
//	{"success": false, "message": "No token provided", "code": "NO_TOKEN"}
//
//	httputil.WriteRejection(w, http.StatusForbidden, "RESOURCE_ACCESS_DENIED", "Access denied", nil)
//	httputil.WriteSuccess(w, "Login successful", data)
//
// # Request Parsing
//
//	ownerID := httputil.BodyField(r, "ownerId") // body stays readable
//	id := httputil.PathVar(r, "id")
//	ip := httputil.ClientIP(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and authorization gates
package httputil
