// Package api provides the HTTP and WebSocket surface of Hearth Core.
//
// It carries two long-lived WebSocket endpoints, one for house clients
// (mobile apps) and one for field controllers, plus a small REST API
// for health, component inventory, and activity history. The WebSocket
// handlers are thin protocol adapters: they decode wire messages and
// hand them to the relay package, which owns routing, buffering, and
// correlation.
//
// The server follows the usual lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use.
package api
