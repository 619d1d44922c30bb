// Package api provides the HTTP REST API and WebSocket server for Sugarline
// Core.
//
// It exposes the legacy-compatible entries endpoints under /api/v1, account
// management, and a per-tenant WebSocket feed that pushes stored entries to
// connected dashboards in real time.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
