package relay

import "errors"

var (
	// ErrRouting indicates a command could not be mapped to a live,
	// approved controller connection. Nothing is buffered on a routing
	// miss; the error is surfaced to the requesting client.
	ErrRouting = errors.New("relay: no route to component")

	// ErrControllerOffline indicates the controller has no live
	// connection. A normal miss, distinct from a transport send failure.
	ErrControllerOffline = errors.New("relay: controller offline")

	// ErrMalformedAck indicates an acknowledgment without a command id.
	// Logged and dropped; never propagated to the device connection.
	ErrMalformedAck = errors.New("relay: malformed ack")
)
