// Package api implements the HTTP REST API and WebSocket event stream of the hub.
//
// This package provides:
//   - Read-only views of the service catalog, seen set, journal and components
//   - Mutation routes to trigger a scan, announce a device and load a platform
//   - A WebSocket stream of bus events, one channel per event type
//
// # Security
//
// Mutation routes require an HS256 bearer token signed with
// security.jwt.secret. There is no user database; tokens are minted on the
// hub host with `graylogic-hub token`. Read routes and the event stream are
// open, so bind the API to a trusted interface or enable TLS.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
