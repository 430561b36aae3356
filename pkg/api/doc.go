// Package api provides the Haven HTTP API.
//
// # Routes
//
//	POST /api/auth/register                 create an account, set the token cookie
//	POST /api/auth/login                    throttle, lockout check, login
//	POST /api/auth/logout                   clear the token cookie
//	GET  /api/auth/me                       authenticated
//	GET  /api/properties                    optional authentication
//	PUT  /api/properties/{propertyId}/owner owner, agent or admin
//	GET  /api/agent/dashboard               agent or admin
//	GET  /api/admin/dashboard               admin
//	GET  /api/reports                       agent or admin
//	PUT  /api/users/{id}                    owner or admin
//	GET  /api/integrations/ping             X-API-Key
//	GET  /healthz, /readyz, /metrics
//
// # Usage
//
//	srv := api.NewServer(api.Options{Store: store, Service: svc, Issuer: issuer})
//	http.ListenAndServe(":8080", srv.Handler())
package api
